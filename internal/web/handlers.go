package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/logging"
	"github.com/JonMunkholm/csvcompare/internal/plan"
	"github.com/JonMunkholm/csvcompare/internal/source"
	"github.com/JonMunkholm/csvcompare/internal/web/templates"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	// multipartMemory is how much of a form is buffered before spilling to disk.
	multipartMemory = 32 << 20

	// formOverhead allows for the plan and the multipart framing on top of
	// the two files.
	formOverhead = 1 << 20
)

// CompareResponse is the body of a successful POST /api/compare.
type CompareResponse struct {
	RunID       uuid.UUID                      `json:"run_id"`
	MatchResult bool                           `json:"match_result"`
	Stats       compare.Stats                  `json:"stats"`
	DurationMS  int64                          `json:"duration_ms"`
	Output      *compare.Output                `json:"output"`
	RaggedLines map[string][]source.RaggedLine `json:"ragged_lines,omitempty"`
}

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Runs   []*core.Run `json:"runs"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports comparison slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleCompare runs a comparison of the two uploaded files.
//
// Form fields:
//   - first, second: the CSV files (required)
//   - index: index column; overrides the plan's
//   - plan: plan text, YAML or JSON
//   - strip, strip_headers, snapshot: booleans
//   - drop_columns: comma separated, may repeat
//   - encoding: force both inputs to utf-8, utf-16 or windows-1252
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.MaxFileSize()
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+formOverhead)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("upload: %w", source.ErrTooLarge))
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid csv upload form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, closeFiles, err := compareRequest(r)
	defer closeFiles()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Run(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Debug("comparison served",
		"run_id", res.Run.ID,
		"match", res.Output.MatchResult,
	)

	resp := CompareResponse{
		RunID:       res.Run.ID,
		MatchResult: res.Output.MatchResult,
		Stats:       res.Run.Stats,
		DurationMS:  res.Run.Duration.Milliseconds(),
		Output:      res.Output,
	}
	for _, doc := range []*source.Document{res.First, res.Second} {
		if doc != nil && doc.HasError() {
			if resp.RaggedLines == nil {
				resp.RaggedLines = map[string][]source.RaggedLine{}
			}
			resp.RaggedLines[doc.Table.Source()] = doc.RaggedLines
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// compareRequest builds a run request from a parsed multipart form. The
// returned func closes the uploaded files and is always safe to call.
func compareRequest(r *http.Request) (core.RunRequest, func(), error) {
	var files []multipart.File
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}

	var req core.RunRequest
	inputs := []struct {
		field string
		dst   *core.Input
	}{
		{"first", &req.First},
		{"second", &req.Second},
	}
	for _, in := range inputs {
		file, header, err := r.FormFile(in.field)
		if err != nil {
			return req, closeFiles, fmt.Errorf("%s: %w", in.field, core.ErrNoFile)
		}
		files = append(files, file)
		*in.dst = core.Input{Name: header.Filename, Reader: file}
	}

	if name := r.FormValue("encoding"); name != "" {
		enc, err := source.ParseEncoding(name)
		if err != nil {
			return req, closeFiles, fmt.Errorf("encoding error: %w", err)
		}
		req.First.Encoding = enc
		req.Second.Encoding = enc
	}

	req.Index = strings.TrimSpace(r.FormValue("index"))

	if text := r.FormValue("plan"); strings.TrimSpace(text) != "" {
		p, err := plan.ParseText(text)
		if err != nil {
			return req, closeFiles, err
		}
		req.Plan = p
	}

	var strip, stripHeaders bool
	flags := []struct {
		name string
		dst  *bool
	}{
		{"strip", &strip},
		{"strip_headers", &stripHeaders},
		{"snapshot", &req.Snapshot},
	}
	for _, f := range flags {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, closeFiles, fmt.Errorf("%w: %s must be true or false", plan.ErrInvalidPlan, f.name)
		}
		*f.dst = b
	}

	if stripHeaders {
		req.Transforms = append(req.Transforms, compare.StripColumnNames())
	}
	if strip {
		req.Transforms = append(req.Transforms, compare.StripWhitespace())
	}
	if cols := dropColumns(r.Form["drop_columns"]); len(cols) > 0 {
		req.Transforms = append(req.Transforms, compare.DropColumns(cols...))
	}

	return req, closeFiles, nil
}

// dropColumns flattens repeated and comma separated values.
func dropColumns(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// page reads limit and offset query parameters.
func page(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	runs, err := s.service.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Limit: limit, Offset: offset})
}

// runFromPath loads the run named by the runID URL parameter. A malformed
// ID is reported as not found.
func (s *Server) runFromPath(r *http.Request) (*core.Run, error) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		return nil, core.ErrRunNotFound
	}
	return s.service.GetRun(r.Context(), id)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runFromPath(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunsPage(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	runs, err := s.service.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderPage(w, r, "Comparisons", templates.RunList(runs, offset, limit))
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	run, err := s.runFromPath(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	title := fmt.Sprintf("%s vs %s (%s)", run.FirstSource, run.SecondSource, run.CreatedAt.Format(time.DateOnly))
	s.renderPage(w, r, title, templates.RunReport(run))
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Layout(title, body).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "title", title, "error", err)
	}
}
