package core

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/logging"
	"github.com/JonMunkholm/offerloader/internal/tsv"
)

// DefaultMaxInFlight is the number of rows consumed concurrently when no
// limit is configured.
const DefaultMaxInFlight = 8

// FailurePolicy decides what a sink error does to the rest of an import.
type FailurePolicy string

const (
	// FailIsolate records the failed row and keeps importing.
	FailIsolate FailurePolicy = "isolate"
	// FailAbort stops the import at the first sink error.
	FailAbort FailurePolicy = "abort"
)

// ParseFailurePolicy parses "isolate" or "abort". An empty string selects
// FailIsolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailIsolate:
		return FailIsolate, nil
	case FailAbort:
		return FailAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want isolate or abort)", s)
	}
}

// Sink consumes decoded offers. Consume may be called from several
// goroutines at once.
type Sink interface {
	Consume(ctx context.Context, rec domain.OfferRecord) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec domain.OfferRecord) error

// Consume calls f.
func (f SinkFunc) Consume(ctx context.Context, rec domain.OfferRecord) error {
	return f(ctx, rec)
}

// ImportOptions configures an Importer.
type ImportOptions struct {
	// MaxInFlight bounds concurrent Consume calls. Reading pauses while the
	// limit is reached.
	MaxInFlight int
	Policy      FailurePolicy
	// MaxLineBytes bounds a single input line.
	MaxLineBytes int
	// TotalBytes is the input size for progress reporting, 0 if unknown.
	TotalBytes int64
}

// FailedRow describes a decoded row the sink rejected.
type FailedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	RunID string `json:"runId"`
	// Imported counts rows the sink accepted.
	Imported int `json:"imported"`
	// Skipped counts lines that could not be decoded.
	Skipped  int           `json:"skipped"`
	Failed   []FailedRow   `json:"failed,omitempty"`
	Lines    int           `json:"lines"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// RowError is returned by an aborted import.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Importer runs TSV imports.
type Importer struct {
	opts ImportOptions
}

// NewImporter returns an Importer, filling unset options with defaults.
func NewImporter(opts ImportOptions) *Importer {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.Policy == "" {
		opts.Policy = FailIsolate
	}
	return &Importer{opts: opts}
}

// Policy returns the active failure policy.
func (im *Importer) Policy() FailurePolicy {
	return im.opts.Policy
}

// Run imports r into sink. The returned result is valid even when err is
// non-nil and reflects the rows settled before the run stopped.
func (im *Importer) Run(ctx context.Context, r io.Reader, sink Sink) (ImportResult, error) {
	start := time.Now()
	res := ImportResult{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, res.RunID)
	log := logging.FromContext(ctx)

	in := tsv.Wrap(r, im.opts.TotalBytes)
	lines := tsv.NewLineReader(in, im.opts.MaxLineBytes)

	finish := func() {
		res.Lines = lines.Line()
		res.Bytes = in.BytesRead()
		res.Duration = time.Since(start)
	}

	headerLine, ok := lines.Next()
	if !ok {
		finish()
		if err := lines.Err(); err != nil {
			return res, fmt.Errorf("read header: %w", err)
		}
		log.Warn("import input is empty")
		return res, nil
	}
	header := tsv.DecodeHeader(headerLine)
	if missing := tsv.MissingColumns(header); len(missing) > 0 {
		log.Warn("header is missing canonical columns", "missing", missing)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.MaxInFlight)

	var (
		imported atomic.Int64
		skipped  int
		mu       sync.Mutex
		failed   []FailedRow
	)

	for gctx.Err() == nil {
		line, ok := lines.Next()
		if !ok {
			break
		}
		lineNo := lines.Line()

		rec, err := tsv.DecodeRow(line, header)
		if err != nil {
			skipped++
			continue
		}

		g.Go(func() error {
			if err := sink.Consume(gctx, rec); err != nil {
				mu.Lock()
				failed = append(failed, FailedRow{Line: lineNo, Reason: err.Error()})
				mu.Unlock()

				if im.opts.Policy == FailAbort {
					return &RowError{Line: lineNo, Err: err}
				}
				log.Warn("row failed", "line", lineNo, "error", err)
				return nil
			}
			imported.Add(1)
			return nil
		})
	}

	waitErr := g.Wait()

	res.Imported = int(imported.Load())
	res.Skipped = skipped
	slices.SortFunc(failed, func(a, b FailedRow) int { return cmp.Compare(a.Line, b.Line) })
	res.Failed = failed
	finish()

	switch {
	case waitErr != nil:
		log.Error("import aborted", "error", waitErr, "imported", res.Imported)
		return res, fmt.Errorf("import aborted: %w", waitErr)
	case lines.Err() != nil:
		return res, fmt.Errorf("read input: %w", lines.Err())
	case ctx.Err() != nil:
		return res, ctx.Err()
	}

	log.Info("import completed",
		"imported", res.Imported,
		"skipped", res.Skipped,
		"failed", len(res.Failed),
		"lines", res.Lines,
		"duration", res.Duration,
	)
	return res, nil
}
