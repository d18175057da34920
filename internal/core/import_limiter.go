package core

// import_limiter.go bounds the number of imports running at once through the
// HTTP API. A request that finds every slot taken waits up to maxWait and
// then fails with ErrTooManyImports. WaitForDrain lets shutdown wait for
// running imports to finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when no import slot frees up in time.
var ErrTooManyImports = errors.New("too many imports in progress, please try again later")

// Defaults for NewImportLimiter.
const (
	DefaultMaxConcurrentImports = 2
	DefaultImportWait           = 30 * time.Second
)

// ImportLimiter is a counting semaphore over import slots.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewImportLimiter allows at most maxConcurrent imports; callers wait at
// most maxWait for a slot.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}

	idle := make(chan struct{})
	close(idle)
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait. The caller must
// Release the slot when done.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.started()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// TryAcquire takes a slot if one is free and reports whether it did.
func (l *ImportLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.started()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *ImportLimiter) started() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// WaitForDrain blocks until no import is running or ctx ends.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			l.mu.Lock()
			done := l.active == 0
			l.mu.Unlock()
			if done {
				return nil
			}
		}
	}
}

// ImportLimiterStatus is a snapshot of the limiter.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports current usage.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return ImportLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
