package tsv

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingFile is an in-memory destination that tracks Sync and Close.
type recordingFile struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	synced bool
	closed bool
}

func (f *recordingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *recordingFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = true
	return nil
}

func (f *recordingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// gatedWriter blocks every Write until the gate is opened.
type gatedWriter struct {
	gate chan struct{}
	mu   sync.Mutex
	buf  bytes.Buffer
}

func (g *gatedWriter) Write(p []byte) (int, error) {
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buf.Write(p)
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestStreamWriterOrderAndFlush(t *testing.T) {
	dst := &recordingFile{}
	w := NewStreamWriter(dst, 4, 16)
	ctx := context.Background()

	var want []string
	for i := 0; i < 100; i++ {
		line := "row-" + strconv.Itoa(i)
		want = append(want, line)
		if err := w.WriteLine(ctx, line); err != nil {
			t.Fatalf("WriteLine(%d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := strings.Split(strings.TrimSuffix(dst.buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !dst.synced || !dst.closed {
		t.Errorf("synced=%v closed=%v, want both true", dst.synced, dst.closed)
	}
	if w.Written() != 100 {
		t.Errorf("Written() = %d, want 100", w.Written())
	}
}

func TestStreamWriterBackpressure(t *testing.T) {
	dst := &gatedWriter{gate: make(chan struct{})}
	w := NewStreamWriter(dst, 1, 1)

	// The first line is taken by the drain goroutine and blocks on the
	// destination; the second fills the queue.
	if err := w.WriteLine(context.Background(), "first"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := w.WriteLine(context.Background(), "second"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.WriteLine(ctx, "third"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WriteLine on full queue = %v, want DeadlineExceeded", err)
	}

	close(dst.gate)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := dst.buf.String(); got != "first\nsecond\n" {
		t.Errorf("destination = %q, want %q", got, "first\nsecond\n")
	}
}

func TestStreamWriterStickyError(t *testing.T) {
	boom := errors.New("disk full")
	w := NewStreamWriter(failingWriter{err: boom}, 1, 1)

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = w.WriteLine(ctx, "some line"); err != nil {
			break
		}
	}
	if !errors.Is(err, boom) {
		t.Fatalf("WriteLine error = %v, want %v", err, boom)
	}
	if err := w.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() = %v, want %v", err, boom)
	}
}

func TestStreamWriterClosed(t *testing.T) {
	w := NewStreamWriter(&bytes.Buffer{}, 0, 0)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.WriteLine(context.Background(), "late"); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("WriteLine after Close = %v, want ErrWriterClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
