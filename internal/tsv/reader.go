package tsv

// reader.go wraps raw input for line-by-line decoding without loading the
// whole file:
//
//   - the UTF-8 byte order mark written by Windows tools is dropped
//   - invalid UTF-8 bytes are replaced with '?'
//   - bytes read are counted for progress reporting
//
// Wrap applies all three in that order.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultMaxLineBytes bounds a single row when no limit is configured.
const DefaultMaxLineBytes = 1 << 20

// bomReader drops a leading UTF-8 byte order mark.
type bomReader struct {
	br      *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{br: bufio.NewReader(r)}
}

func (r *bomReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if b, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' as data streams
// through. A multi-byte sequence split across two reads is held back and
// completed on the next read.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) <= len(s.pending) {
		return 0, io.ErrShortBuffer
	}

	n := copy(p, s.pending)
	s.pending = s.pending[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, a truncated trailing sequence moves to s.pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if data[r] < utf8.RuneSelf {
			data[w] = data[r]
			w++
			r++
			continue
		}
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			break
		}
		ru, size := utf8.DecodeRune(data[r:])
		if ru == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// CountingReader tracks the number of bytes read. BytesRead is safe to call
// from another goroutine while reading is in progress.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	Total int64 // 0 when unknown
}

// NewCountingReader wraps r. total may be 0 if the size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n.Load()
}

// Progress returns the percentage read, or 0 when Total is unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(c.BytesRead() * 100 / c.Total)
}

// Wrap strips a BOM, sanitizes UTF-8 and counts bytes, in that order.
func Wrap(r io.Reader, total int64) *CountingReader {
	return NewCountingReader(newUTF8Sanitizer(newBOMReader(r)), total)
}

// LineReader yields input lines in file order.
type LineReader struct {
	sc   *bufio.Scanner
	line int
}

// NewLineReader reads lines from r. Lines longer than maxLineBytes stop the
// reader with bufio.ErrTooLong; maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)
	return &LineReader{sc: sc}
}

// Next returns the next line without its terminator. ok is false at end of
// input or on error; check Err afterwards.
func (l *LineReader) Next() (line string, ok bool) {
	if !l.sc.Scan() {
		return "", false
	}
	l.line++
	return l.sc.Text(), true
}

// Line returns the 1-based number of the line last returned by Next.
func (l *LineReader) Line() int {
	return l.line
}

// Err returns the first non-EOF error encountered.
func (l *LineReader) Err() error {
	return l.sc.Err()
}
