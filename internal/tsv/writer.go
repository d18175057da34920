package tsv

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrWriterClosed is returned by WriteLine after Close.
var ErrWriterClosed = errors.New("tsv: writer closed")

// Default sizes for NewStreamWriter.
const (
	DefaultQueueSize  = 64
	DefaultBufferSize = 64 * 1024
)

// StreamWriter writes lines to a destination through a bounded queue.
//
// WriteLine returns once the queue has accepted the line. When the
// destination is slower than the producer the queue fills and WriteLine
// blocks until a slot frees up, so memory use stays bounded regardless of
// how many lines are produced. A single goroutine drains the queue in order
// into a buffered writer.
//
// The first destination error is sticky: later WriteLine calls and Close
// return it.
type StreamWriter struct {
	dst   io.Writer
	buf   *bufio.Writer
	lines chan string
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	written   atomic.Int64
	closeOnce sync.Once
}

// NewStreamWriter starts a writer draining into dst. If dst implements
// io.Closer it is closed by Close. Non-positive sizes select the defaults.
func NewStreamWriter(dst io.Writer, queueSize, bufferSize int) *StreamWriter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	w := &StreamWriter{
		dst:   dst,
		buf:   bufio.NewWriterSize(dst, bufferSize),
		lines: make(chan string, queueSize),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *StreamWriter) drain() {
	defer close(w.done)

	for line := range w.lines {
		if w.Err() != nil {
			// Keep consuming so producers never block on a dead destination.
			continue
		}
		if _, err := w.buf.WriteString(line); err != nil {
			w.setErr(err)
			continue
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			w.setErr(err)
			continue
		}
		w.written.Add(1)
	}

	if w.Err() != nil {
		return
	}
	if err := w.buf.Flush(); err != nil {
		w.setErr(err)
		return
	}
	if s, ok := w.dst.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			w.setErr(err)
		}
	}
}

// WriteLine queues line (without terminator) for writing. It blocks while
// the queue is full and returns ctx.Err() if ctx ends first.
func (w *StreamWriter) WriteLine(ctx context.Context, line string) error {
	if err := w.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.lines <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, flushes buffered bytes, syncs files and closes the
// destination. It returns only after all accepted lines reached the
// destination, or with the first error that prevented it.
func (w *StreamWriter) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.lines)
		w.mu.Unlock()

		<-w.done

		if c, ok := w.dst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				w.setErr(err)
			}
		}
	})
	return w.Err()
}

// Written returns the number of lines handed to the buffered writer.
func (w *StreamWriter) Written() int64 {
	return w.written.Load()
}

// Err returns the first destination error, if any.
func (w *StreamWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *StreamWriter) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
