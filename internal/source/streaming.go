package source

// streaming.go holds the readers that sit between an upload body and the
// CSV parser:
//
//   - bomSkipper drops a leading UTF-8 byte order mark
//   - sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader counts bytes and enforces a size limit
//
// They keep memory at the size of the read buffer, which is what lets an
// upload with a declared UTF-8 encoding go straight into the parser.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrTooLarge is wrapped by CountingReader when the limit is passed.
var ErrTooLarge = fmt.Errorf("file too large")

// CountingReader tracks how many bytes have been read. With a positive
// Limit, reading past it fails.
type CountingReader struct {
	r     io.Reader
	Limit int64
	N     int64
}

// NewCountingReader wraps r. A limit of 0 means unlimited.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{r: r, Limit: limit}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.N += int64(n)
	if c.Limit > 0 && c.N > c.Limit {
		return n, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, c.Limit)
	}
	return n, err
}

// bomSkipper returns a reader over r without a leading UTF-8 BOM. A partial
// BOM is left in place.
func bomSkipper(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bomUTF8)); err == nil && bytes.Equal(head, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
	}
	return br
}

// sanitizer rewrites invalid UTF-8 bytes to '?' as they stream through.
// Raw bytes are read into an internal chunk so a rune split across reads,
// or longer than the caller's buffer, is carried instead of dropped. Clean
// bytes are handed back in pieces of at most len(p).
type sanitizer struct {
	r     io.Reader
	chunk []byte
	carry []byte // raw bytes of an incomplete trailing rune
	out   []byte // sanitized bytes not yet returned
	off   int
	err   error
}

const sanitizerChunk = 4096

// maxEmptyReads bounds how often an upstream (0, nil) read is retried.
const maxEmptyReads = 100

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{
		r:     r,
		chunk: make([]byte, sanitizerChunk),
		carry: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for empty := 0; s.off == len(s.out); {
		if s.err != nil {
			return 0, s.err
		}
		if s.fill() == 0 && s.err == nil {
			empty++
			if empty >= maxEmptyReads {
				return 0, io.ErrNoProgress
			}
		}
	}

	n := copy(p, s.out[s.off:])
	s.off += n
	return n, nil
}

// fill reads one chunk from upstream and appends its clean bytes to out.
// It returns how many bytes upstream produced.
func (s *sanitizer) fill() int {
	if s.off == len(s.out) {
		s.out, s.off = s.out[:0], 0
	}

	n, err := s.r.Read(s.chunk)
	if err != nil {
		s.err = err
	}

	data := s.chunk[:n]
	if len(s.carry) > 0 {
		data = append(append(make([]byte, 0, len(s.carry)+n), s.carry...), data...)
		s.carry = s.carry[:0]
	}

	// Any upstream error ends the stream, so a trailing partial rune is
	// flushed as invalid rather than carried.
	if s.err == nil {
		if k := trailingPartial(data); k > 0 {
			s.carry = append(s.carry, data[len(data)-k:]...)
			data = data[:len(data)-k]
		}
	}

	s.out = appendClean(s.out, data)
	return n
}

// appendClean appends data to dst with each invalid byte replaced by '?'.
func appendClean(dst, data []byte) []byte {
	if utf8.Valid(data) {
		return append(dst, data...)
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, '?')
		} else {
			dst = append(dst, data[i:i+size]...)
		}
		i += size
	}
	return dst
}

// trailingPartial reports how many bytes at the end of data begin a rune
// that is not yet complete.
func trailingPartial(data []byte) int {
	for k := 1; k <= utf8.UTFMax-1 && k <= len(data); k++ {
		b := data[len(data)-k]
		if utf8.RuneStart(b) {
			if b >= 0xC0 && !utf8.FullRune(data[len(data)-k:]) {
				return k
			}
			return 0
		}
	}
	return 0
}

// normalizeUTF8 strips a BOM and sanitizes invalid bytes.
func normalizeUTF8(r io.Reader) io.Reader {
	return newSanitizer(bomSkipper(r))
}
