package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/offerloader/internal/application"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/generator"
	"github.com/JonMunkholm/offerloader/internal/logging"
)

// runImport streams the TSV file at args[0] into the configured sink.
func (a *App) runImport(ctx context.Context, args []string) error {
	c := a.commands["--import"]
	if len(args) < 1 || args[0] == "" {
		return &ArgumentError{Command: c.Name, Usage: c.Usage(), Reason: "missing file path"}
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	importer, err := application.Importer(a.env.Config, size)
	if err != nil {
		return err
	}

	sink, release, err := a.env.OpenSink(ctx)
	if err != nil {
		return err
	}
	defer release()

	logging.WithFields(ctx, "path", path, "bytes", size, "policy", importer.Policy()).Info("importing offers")

	res, err := importer.Run(ctx, f, sink)
	for _, fr := range res.Failed {
		fmt.Fprintf(a.env.Stderr, "line %d: %s\n", fr.Line, fr.Reason)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.env.Stdout, "Imported %d offers.\n", res.Imported)
	if res.Skipped > 0 || len(res.Failed) > 0 {
		fmt.Fprintf(a.env.Stdout, "Skipped %d undecodable lines, %d rows failed.\n", res.Skipped, len(res.Failed))
	}
	return nil
}

// runGenerate writes count generated offers to path. The template offers are
// fetched before the file is created, so a failing upstream leaves no file.
func (a *App) runGenerate(ctx context.Context, args []string) error {
	c := a.commands["--generate"]
	if len(args) < 3 {
		return &ArgumentError{Command: c.Name, Usage: c.Usage(), Reason: "expected 3 arguments"}
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return &ArgumentError{Command: c.Name, Usage: c.Usage(), Reason: fmt.Sprintf("count must be a non-negative integer, got %q", args[0])}
	}
	baseURL := args[2]

	path, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[1], err)
	}

	log := logging.WithFields(ctx, "count", count, "path", path, "url", baseURL)
	log.Info("fetching template offers")

	pool, err := a.env.Fetch(ctx, baseURL)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return fmt.Errorf("%s/offers: %w", baseURL, generator.ErrEmptyPool)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	ec := a.env.Config.Export
	exporter := core.NewExporter(core.ExportOptions{QueueSize: ec.QueueSize, BufferSize: ec.BufferSize}, a.env.Generator)
	n, err := exporter.Generate(ctx, f, pool, count, baseURL)
	if err != nil {
		return fmt.Errorf("generate %s: %w", path, err)
	}

	fmt.Fprintf(a.env.Stdout, "Created %s with %d offers.\n", path, n)
	return nil
}
