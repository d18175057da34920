// Package cli implements the offerctl command line: a registry of
// flag-style commands (--help, --version, --import, --generate) dispatched
// on the first argument.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/generator"
	"github.com/JonMunkholm/offerloader/internal/upstream"
)

// Version is reported by --version. Release builds set it with
// -ldflags "-X github.com/JonMunkholm/offerloader/internal/cli.Version=...".
var Version = "0.1.0"

// DefaultCommand runs when no argument is given.
const DefaultCommand = "--help"

// ErrUnknownCommand is returned for a first argument no command is
// registered under.
var ErrUnknownCommand = errors.New("unknown command")

// ArgumentError reports missing or malformed command arguments.
type ArgumentError struct {
	Command string
	Usage   string
	Reason  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s (usage: %s)", e.Command, e.Reason, e.Usage)
}

// Command is one entry of the registry.
type Command struct {
	Name        string
	Args        string
	Description string
	Run         func(ctx context.Context, args []string) error
}

// Usage returns "name args".
func (c Command) Usage() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

// Env carries the dependencies of the commands.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config

	// OpenSink returns the sink imported offers go to and a func releasing
	// it. Nil prints offers to Stdout.
	OpenSink func(ctx context.Context) (core.Sink, func(), error)

	// Fetch returns template offers listed by the service at baseURL. Nil
	// uses an upstream client bounded by UPSTREAM_TIMEOUT.
	Fetch func(ctx context.Context, baseURL string) ([]domain.OfferRecord, error)

	// Generator randomizes generated offers. Nil uses a time-seeded one.
	Generator *generator.Generator
}

// App dispatches arguments to registered commands.
type App struct {
	env      Env
	commands map[string]Command
	order    []string
}

// New returns an App with the built-in commands registered.
func New(env Env) *App {
	if env.Config == nil {
		env.Config = &config.Config{}
	}
	if env.OpenSink == nil {
		env.OpenSink = func(context.Context) (core.Sink, func(), error) {
			return core.NewPrintSink(env.Stdout), func() {}, nil
		}
	}
	if env.Fetch == nil {
		timeout := env.Config.Upstream.Timeout
		env.Fetch = func(ctx context.Context, baseURL string) ([]domain.OfferRecord, error) {
			return upstream.New(baseURL, timeout).FetchOffers(ctx)
		}
	}
	if env.Generator == nil {
		env.Generator = generator.New(nil, nil)
	}

	a := &App{env: env, commands: make(map[string]Command)}
	a.Register(Command{
		Name:        "--help",
		Description: "print this text",
		Run:         a.runHelp,
	})
	a.Register(Command{
		Name:        "--version",
		Description: "print the version number",
		Run:         a.runVersion,
	})
	a.Register(Command{
		Name:        "--import",
		Args:        "<path>",
		Description: "import offers from a TSV file",
		Run:         a.runImport,
	})
	a.Register(Command{
		Name:        "--generate",
		Args:        "<count> <path> <url>",
		Description: "generate <count> random offers into a TSV file, sampling the service at <url>",
		Run:         a.runGenerate,
	})
	return a
}

// Register adds c, replacing any command with the same name.
func (a *App) Register(c Command) {
	if _, exists := a.commands[c.Name]; !exists {
		a.order = append(a.order, c.Name)
	}
	a.commands[c.Name] = c
}

// Execute runs the command named by args[0] with the remaining arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	name := DefaultCommand
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}

	c, ok := a.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c.Run(ctx, args)
}

// Run executes args and returns the process exit code. Errors are written
// to Stderr.
func (a *App) Run(ctx context.Context, args []string) int {
	err := a.Execute(ctx, args)
	if err == nil {
		return 0
	}

	fmt.Fprintf(a.env.Stderr, "Error: %v\n", err)
	if errors.Is(err, ErrUnknownCommand) {
		fmt.Fprintf(a.env.Stderr, "Use %s to list the available commands.\n", DefaultCommand)
	}
	return 1
}

func (a *App) runHelp(context.Context, []string) error {
	var b strings.Builder
	b.WriteString("Prepares fixture data for the offer REST API.\n\n")
	b.WriteString("Usage: offerctl --<command> [arguments]\n\n")
	b.WriteString("Commands:\n\n")

	width := 0
	for _, name := range a.order {
		width = max(width, len(a.commands[name].Usage()))
	}
	for _, name := range a.order {
		c := a.commands[name]
		fmt.Fprintf(&b, " %-*s  # %s\n", width, c.Usage(), c.Description)
	}

	_, err := io.WriteString(a.env.Stdout, b.String())
	return err
}

func (a *App) runVersion(context.Context, []string) error {
	_, err := fmt.Fprintln(a.env.Stdout, Version)
	return err
}
