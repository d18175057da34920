package cli

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/generator"
	"github.com/JonMunkholm/offerloader/internal/tsv"
)

type testEnv struct {
	stdout, stderr bytes.Buffer
	fetches        int
	fetchErr       error
	pool           []domain.OfferRecord

	mu       sync.Mutex
	consumed []domain.OfferRecord
}

func (e *testEnv) app(sink core.Sink) *App {
	env := Env{
		Stdout: &e.stdout,
		Stderr: &e.stderr,
		Config: &config.Config{},
		Fetch: func(context.Context, string) ([]domain.OfferRecord, error) {
			e.fetches++
			return e.pool, e.fetchErr
		},
		Generator: generator.New(rand.NewPCG(1, 2), func() time.Time {
			return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		}),
	}
	if sink != nil {
		env.OpenSink = func(context.Context) (core.Sink, func(), error) { return sink, func() {}, nil }
	}
	return New(env)
}

func (e *testEnv) record(_ context.Context, rec domain.OfferRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumed = append(e.consumed, rec)
	return nil
}

func templateOffer() domain.OfferRecord {
	return domain.OfferRecord{Offer: domain.Offer{
		Title:       "Template flat near the park",
		Description: "A flat used as the template of generated offers.",
		City:        domain.CityParis,
		Type:        domain.HousingApartment,
		Host:        domain.User{Name: "Tia", Email: "tia@example.com", Password: "secret1"},
	}}
}

func writeTSV(t *testing.T, rows ...domain.OfferRecord) string {
	t.Helper()
	lines := []string{tsv.HeaderLine()}
	for _, r := range rows {
		lines = append(lines, tsv.EncodeRow(r))
	}
	path := filepath.Join(t.TempDir(), "offers.tsv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no args prints help", nil, 0, "--generate <count> <path> <url>", ""},
		{"help", []string{"--help"}, 0, "--import <path>", ""},
		{"version", []string{"--version"}, 0, Version + "\n", ""},
		{"unknown command", []string{"--export"}, 1, "", "unknown command: --export"},
		{"import without path", []string{"--import"}, 1, "", "missing file path"},
		{"import missing file", []string{"--import", "/does/not/exist.tsv"}, 1, "", "open import file"},
		{"generate without args", []string{"--generate", "3"}, 1, "", "expected 3 arguments"},
		{"generate bad count", []string{"--generate", "many", "out.tsv", "http://x"}, 1, "", "non-negative integer"},
		{"generate negative count", []string{"--generate", "-1", "out.tsv", "http://x"}, 1, "", "non-negative integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e testEnv
			code := e.app(nil).Run(context.Background(), tt.args)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, e.stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(e.stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", e.stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(e.stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", e.stderr.String(), tt.wantStderr)
			}
			if tt.wantCode == 0 && e.stderr.Len() != 0 {
				t.Errorf("unexpected stderr %q", e.stderr.String())
			}
		})
	}
}

func TestArgumentErrorType(t *testing.T) {
	var e testEnv
	err := e.app(nil).Execute(context.Background(), []string{"--import"})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) || argErr.Command != "--import" || argErr.Usage != "--import <path>" {
		t.Errorf("Execute() error = %#v, want *ArgumentError for --import", err)
	}
}

func TestImportPrintsOffersWithoutStore(t *testing.T) {
	rec := templateOffer()
	rec.Offer.Images = []string{"a.jpg"}
	path := writeTSV(t, rec, rec)

	var e testEnv
	if code := e.app(nil).Run(context.Background(), []string{"--import", path}); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, e.stderr.String())
	}
	out := e.stdout.String()
	if got := strings.Count(out, "Offer:"); got != 2 {
		t.Errorf("printed %d offers, want 2:\n%s", got, out)
	}
	if !strings.Contains(out, "Imported 2 offers.") {
		t.Errorf("missing summary in %q", out)
	}
}

func TestImportIntoSink(t *testing.T) {
	path := writeTSV(t, templateOffer(), templateOffer(), templateOffer())

	var e testEnv
	if code := e.app(core.SinkFunc(e.record)).Run(context.Background(), []string{"--import", path}); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, e.stderr.String())
	}
	if len(e.consumed) != 3 {
		t.Fatalf("consumed %d rows, want 3", len(e.consumed))
	}
	if e.consumed[0].Host.Email != "tia@example.com" {
		t.Errorf("host email = %q", e.consumed[0].Host.Email)
	}
}

func TestImportReportsFailedRows(t *testing.T) {
	path := writeTSV(t, templateOffer(), templateOffer())
	failing := core.SinkFunc(func(context.Context, domain.OfferRecord) error {
		return errors.New("store unavailable")
	})

	var e testEnv
	app := e.app(failing)
	app.env.Config.Import.FailurePolicy = "abort"
	if code := app.Run(context.Background(), []string{"--import", path}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(e.stderr.String(), "store unavailable") {
		t.Errorf("stderr = %q, want the sink error", e.stderr.String())
	}
}

func TestGenerate(t *testing.T) {
	e := testEnv{pool: []domain.OfferRecord{templateOffer()}}
	path := filepath.Join(t.TempDir(), "generated.tsv")

	code := e.app(nil).Run(context.Background(), []string{"--generate", "4", path, "http://localhost:3000"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, e.stderr.String())
	}
	if !strings.Contains(e.stdout.String(), "with 4 offers") {
		t.Errorf("stdout = %q", e.stdout.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 5 || lines[0] != tsv.HeaderLine() {
		t.Fatalf("file has %d lines, want header + 4", len(lines))
	}
	header := tsv.DecodeHeader(lines[0])
	for i, line := range lines[1:] {
		rec, err := tsv.DecodeRow(line, header)
		if err != nil {
			t.Fatalf("row %d: %v", i+1, err)
		}
		if rec.Title != templateOffer().Title || rec.Host.Email != "tia@example.com" {
			t.Errorf("row %d = %+v, want template title and host", i+1, rec)
		}
	}
}

func TestGenerateFetchFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
	}{
		{"upstream error", errors.New("connection refused")},
		{"empty pool", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &testEnv{fetchErr: tt.fetchErr}
			path := filepath.Join(t.TempDir(), "generated.tsv")
			if code := e.app(nil).Run(context.Background(), []string{"--generate", "2", path, "http://x"}); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if e.fetches != 1 {
				t.Errorf("fetches = %d, want 1", e.fetches)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("output file exists after failed fetch (stat error %v)", err)
			}
		})
	}
}

func TestRegisterReplaces(t *testing.T) {
	var e testEnv
	app := e.app(nil)
	called := false
	app.Register(Command{Name: "--version", Run: func(context.Context, []string) error {
		called = true
		return nil
	}})

	if code := app.Run(context.Background(), []string{"--version"}); code != 0 || !called {
		t.Errorf("replacement not run: code %d, called %v", code, called)
	}
	if got := strings.Count(strings.Join(app.order, " "), "--version"); got != 1 {
		t.Errorf("--version registered %d times in order", got)
	}
}
