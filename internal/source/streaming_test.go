package source

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkipper(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(bomSkipper(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestSanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		oneByte  bool
		expected string
	}{
		{
			name:     "valid ASCII",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "valid multibyte",
			input:    []byte("naïve,Zoë"),
			expected: "naïve,Zoë",
		},
		{
			name:     "invalid single byte replaced",
			input:    []byte{'h', 'e', 0x80, 'l', 'o'},
			expected: "he?lo",
		},
		{
			name:     "rune split across reads",
			input:    []byte("café,crème"),
			oneByte:  true,
			expected: "café,crème",
		},
		{
			name:     "truncated rune at EOF",
			input:    []byte{'a', 0xC3},
			oneByte:  true,
			expected: "a?",
		},
		{
			name:     "empty input",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.Reader = bytes.NewReader(tt.input)
			if tt.oneByte {
				r = iotest.OneByteReader(r)
			}
			result, err := io.ReadAll(newSanitizer(r))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

// readSmall drains r through a destination buffer of size n.
func readSmall(t *testing.T, r io.Reader, n int) string {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, n)
	for range 1 << 16 {
		k, err := r.Read(buf)
		out.Write(buf[:k])
		if err == io.EOF {
			return out.String()
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	t.Fatal("reader made no progress")
	return ""
}

func TestSanitizerSmallBuffers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		oneByte  bool
		bufSize  int
		expected string
	}{
		{
			name:     "one byte reads into one byte buffer",
			input:    "é€😀abc",
			oneByte:  true,
			bufSize:  1,
			expected: "é€😀abc",
		},
		{
			name:     "whole reads into one byte buffer",
			input:    "é€😀abc",
			bufSize:  1,
			expected: "é€😀abc",
		},
		{
			name:     "buffer smaller than a rune",
			input:    "😀😀😀",
			bufSize:  3,
			expected: "😀😀😀",
		},
		{
			name:     "invalid bytes with small buffer",
			input:    string([]byte{0xFF, 'a', 0xE2, 0x82, 'b'}),
			oneByte:  true,
			bufSize:  2,
			expected: "?a??b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.Reader = strings.NewReader(tt.input)
			if tt.oneByte {
				r = iotest.OneByteReader(r)
			}
			if got := readSmall(t, newSanitizer(r), tt.bufSize); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizerPassesIOTest(t *testing.T) {
	content := []byte(strings.Repeat("a€😀é,", 500))
	if err := iotest.TestReader(newSanitizer(bytes.NewReader(content)), content); err != nil {
		t.Fatal(err)
	}
}

func TestFromReaderUTF8LongRecord(t *testing.T) {
	for pad := range 12 {
		value := strings.Repeat("a", pad) + strings.Repeat("€😀é", 2000)
		input := "id,v\n1," + value + "\n"

		doc, err := FromReader(strings.NewReader(input), "long.csv", Options{Encoding: UTF8})
		if err != nil {
			t.Fatalf("pad %d: unexpected error: %v", pad, err)
		}
		rows := doc.Table.Rows()
		if len(rows) != 1 {
			t.Fatalf("pad %d: got %d rows, want 1", pad, len(rows))
		}
		if got := rows[0].Get("v").Str(); got != value {
			t.Errorf("pad %d: value mangled (len %d, want %d)", pad, len(got), len(value))
		}
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.N != int64(len(input)) {
		t.Errorf("N = %d, want %d", reader.N, len(input))
	}
}

func TestCountingReaderLimit(t *testing.T) {
	reader := NewCountingReader(strings.NewReader(strings.Repeat("x", 1000)), 999)

	_, err := io.ReadAll(reader)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if !strings.Contains(err.Error(), "exceeds 999 bytes") {
		t.Errorf("error %q does not name the limit", err)
	}
}

func TestNormalizeUTF8(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'h', 'e', 0x80, 'l', 'o'}...)

	counter := NewCountingReader(bytes.NewReader(input), 0)
	result, err := io.ReadAll(normalizeUTF8(counter))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != "he?lo" {
		t.Errorf("got %q, want %q", string(result), "he?lo")
	}
	if counter.N != int64(len(input)) {
		t.Errorf("N = %d, want %d", counter.N, len(input))
	}
}
