// Package core runs CSV comparisons for the web service and the command
// line: it loads both inputs, applies a plan, compares, and records the
// run.
//
// # Error Codes Reference
//
// Every error shown to a user carries a code they can quote to support.
// Typed errors from the table, compare, plan and source packages are
// matched first with errors.Is and errors.As; anything else falls through
// to a case-insensitive pattern table.
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Unknown column: A transform named a column the file does not have
//	         Action: Check the column names in your plan against the file header
//	COL002 - Duplicate column: Two columns ended up with the same name
//	         Action: Rename the columns or disable header trimming
//	COL003 - Index missing: The index column is not in one of the files
//	         Action: Choose a column present in both files
//
// # Row Errors (ROW001-ROW099, KEY001)
//
//	ROW001 - Row not found: No row has the requested key
//	ROW002 - Malformed row: A row does not match the table's columns
//	KEY001 - Ambiguous key: More than one row has the requested key
//
// # Plan Errors (PLAN001-PLAN099)
//
//	PLAN001 - Invalid plan: The plan could not be read or has problems
//	PLAN002 - Unknown operation: The plan names an operation that does not exist
//	PLAN003 - No index: No index column was given
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large        Patterns: "file too large"
//	FILE002 - Invalid CSV           Patterns: "invalid csv"
//	FILE003 - Encoding error        Patterns: "encoding error"
//	FILE004 - No file               Patterns: "no file provided"
//	FILE005 - Empty file            Patterns: "empty file"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run not found: The comparison may have been pruned
//	RUN002 - System busy: Too many comparisons in progress
//	RUN003 - Request cancelled
//	RUN004 - Request timed out
//
// # Database Errors (DB004-DB006)
//
//	DB004 - Connection refused      Patterns: "connection refused"
//	DB005 - Connection reset        Patterns: "connection reset"
//	DB006 - Timeout                 Patterns: "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests     Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred. Check the logs for the original
//	         error.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/plan"
	"github.com/JonMunkholm/csvcompare/internal/source"
	"github.com/JonMunkholm/csvcompare/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// typedMatch maps an error type or sentinel to a message.
type typedMatch struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isIndexError(err error) bool {
	var ie *compare.IndexError
	return errors.As(err, &ie)
}

// typedMatches is checked in order before the pattern table. Wrapping
// errors come before the errors they wrap.
var typedMatches = []typedMatch{
	{isIndexError, UserMessage{
		Message: "The index column is missing from one of the files",
		Action:  "Choose a column present in both files",
		Code:    "COL003",
	}},
	{is(table.ErrUnknownColumn), UserMessage{
		Message: "A column named in the comparison does not exist",
		Action:  "Check the column names in your plan against the file header",
		Code:    "COL001",
	}},
	{is(table.ErrDuplicateColumn), UserMessage{
		Message: "Two columns have the same name",
		Action:  "Rename the columns or disable header trimming",
		Code:    "COL002",
	}},
	{is(table.ErrRowNotFound), UserMessage{
		Message: "No row has the requested key",
		Action:  "Check the key value and index column",
		Code:    "ROW001",
	}},
	{is(table.ErrMalformedRow), UserMessage{
		Message: "A row does not match the table's columns",
		Action:  "Make sure every row has one value per column",
		Code:    "ROW002",
	}},
	{is(table.ErrAmbiguousKey), UserMessage{
		Message: "More than one row has the requested key",
		Action:  "Remove duplicate keys or choose a unique index column",
		Code:    "KEY001",
	}},
	{is(plan.ErrUnknownOp), UserMessage{
		Message: "The plan uses an operation that does not exist",
		Action:  "Check the operation names in your plan",
		Code:    "PLAN002",
	}},
	{is(plan.ErrInvalidPlan), UserMessage{
		Message: "The comparison plan is not valid",
		Action:  "Fix the problems listed in the plan error",
		Code:    "PLAN001",
	}},
	{is(ErrNoIndex), UserMessage{
		Message: "No index column was given",
		Action:  "Name the column that identifies each row",
		Code:    "PLAN003",
	}},
	{is(source.ErrTooLarge), UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file or compare a smaller extract",
		Code:    "FILE001",
	}},
	{is(ErrRunNotFound), UserMessage{
		Message: "Comparison run not found",
		Action:  "The run may have been removed. Run the comparison again",
		Code:    "RUN001",
	}},
	{is(ErrTooManyRuns), UserMessage{
		Message: "System is busy running other comparisons",
		Action:  "Please wait a moment and try again",
		Code:    "RUN002",
	}},
	{is(context.Canceled), UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN003",
	}},
	{is(context.DeadlineExceeded), UserMessage{
		Message: "Request timed out",
		Action:  "Try smaller files or try again later",
		Code:    "RUN004",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that arrive as text, such as driver errors or
// errors rebuilt from a stored message. First match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file or compare a smaller extract",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File encoding could not be read",
			Action:  "Save the file as UTF-8 or name its encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "A file was not provided",
			Action:  "Select both files to compare",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try smaller files or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := c.Compare("sku")
//	msg := MapError(err)
//	// msg.Code == "COL003" when sku is missing from a file
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, tm := range typedMatches {
		if tm.match(err) {
			return tm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps it for logging. Returns nil if err is
// nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
