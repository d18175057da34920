package core

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/generator"
	"github.com/JonMunkholm/offerloader/internal/logging"
	"github.com/JonMunkholm/offerloader/internal/tsv"
)

// ExportOptions sizes the output queue and buffer of an Exporter.
type ExportOptions struct {
	QueueSize  int
	BufferSize int
}

// Exporter writes offers as TSV.
type Exporter struct {
	opts ExportOptions
	gen  *generator.Generator
}

// NewExporter returns an Exporter. gen may be nil if Generate is never called.
func NewExporter(opts ExportOptions, gen *generator.Generator) *Exporter {
	return &Exporter{opts: opts, gen: gen}
}

// Generate writes the canonical header and count generated offers to dst,
// sampling templates from pool. Rows are written in generation order. dst is
// closed, and Generate returns only after every row has been flushed to it.
// It returns the number of rows written.
func (e *Exporter) Generate(ctx context.Context, dst io.WriteCloser, pool []domain.OfferRecord, count int, baseURL string) (int, error) {
	if e.gen == nil {
		_ = dst.Close()
		return 0, fmt.Errorf("exporter has no generator")
	}
	if len(pool) == 0 {
		_ = dst.Close()
		return 0, generator.ErrEmptyPool
	}

	i := 0
	next := func() (domain.OfferRecord, bool, error) {
		if i >= count {
			return domain.OfferRecord{}, false, nil
		}
		i++
		rec, err := e.gen.Next(pool, baseURL, i)
		return rec, err == nil, err
	}

	n, err := e.write(ctx, dst, next)
	if err != nil {
		return n, err
	}
	logging.FromContext(ctx).Info("generated offers", "count", n)
	return n, nil
}

// Export writes the canonical header and records to dst, then closes it.
func (e *Exporter) Export(ctx context.Context, dst io.WriteCloser, records []domain.OfferRecord) (int, error) {
	i := 0
	next := func() (domain.OfferRecord, bool, error) {
		if i >= len(records) {
			return domain.OfferRecord{}, false, nil
		}
		i++
		return records[i-1], true, nil
	}
	return e.write(ctx, dst, next)
}

func (e *Exporter) write(ctx context.Context, dst io.WriteCloser, next func() (domain.OfferRecord, bool, error)) (int, error) {
	w := tsv.NewStreamWriter(dst, e.opts.QueueSize, e.opts.BufferSize)

	n, err := func() (int, error) {
		if err := w.WriteLine(ctx, tsv.HeaderLine()); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
		n := 0
		for {
			rec, ok, err := next()
			if err != nil {
				return n, err
			}
			if !ok {
				return n, nil
			}
			if err := w.WriteLine(ctx, tsv.EncodeRow(rec)); err != nil {
				return n, fmt.Errorf("write row %d: %w", n+1, err)
			}
			n++
		}
	}()

	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("flush output: %w", cerr)
	}
	return n, err
}
