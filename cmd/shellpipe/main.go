// shellpipe runs shell commands through one long-lived interpreter per
// session and reports each command's output and exit status.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/julianknutsen/shellpipe/internal/fsys"
	"github.com/julianknutsen/shellpipe/internal/telemetry"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is a sentinel error returned by cobra RunE functions to signal
// non-zero exit. The command has already written its own error to stderr.
var errExit = errors.New("exit")

// exitCodeError asks run to exit with a specific status. Used by exec to
// pass a command's exit status through.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var (
	// configFlag holds --config. Empty means $SHELLPIPE_CONFIG or
	// ./shellpipe.toml.
	configFlag string
	// verboseFlag enables debug logging to stderr.
	verboseFlag bool
)

// run executes the shellpipe CLI with the given args, writing output to
// stdout and errors to stderr. Returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prov, err := telemetry.Init(ctx, "shellpipe", version)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe: telemetry disabled: %v\n", err) //nolint:errcheck // best-effort stderr
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = prov.Shutdown(sctx)
	}()

	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "shellpipe: %v\n", err) //nolint:errcheck // best-effort stderr
		}
		return 1
	}
	return 0
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "shellpipe",
		Short:         "Run commands through a long-lived shell session",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(stderr, "shellpipe: unknown command %q\n", args[0]) //nolint:errcheck // best-effort stderr
			return errExit
		},
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "",
		"path to shellpipe.toml (default: $"+config.EnvConfig+" or ./"+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log session diagnostics to stderr")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newRunCmd(stdout, stderr),
		newExecCmd(stdout, stderr),
		newEventsCmd(stdout, stderr),
		newConfigCmd(stdout, stderr),
		newDoctorCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	root.AddCommand(newGenDocCmd(stdout, stderr, root))
	return root
}

// loadConfig loads the effective configuration. A missing file is only an
// error when the path was given explicitly.
func loadConfig() (*config.Config, string, error) {
	path := config.Path(configFlag)
	explicit := configFlag != "" || os.Getenv(config.EnvConfig) != ""
	if explicit {
		cfg, err := config.Load(fsys.OSFS{}, path)
		return cfg, path, err
	}
	cfg, err := config.LoadOrDefault(fsys.OSFS{}, path)
	return cfg, path, err
}

// newLogger returns the session logger: debug text to stderr with
// --verbose, warnings only otherwise.
func newLogger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// openRecorder returns a recorder for the configured event log and a
// function that closes it. Falls back to events.Discard when the log is
// disabled or cannot be opened, so commands always get a valid recorder.
func openRecorder(cfg *config.Config, stderr io.Writer) (events.Recorder, func()) {
	if cfg.Events.Path == "" {
		return events.Discard, func() {}
	}
	rec, err := events.NewFileRecorder(cfg.Events.Path, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe: event log disabled: %v\n", err) //nolint:errcheck // best-effort stderr
		return events.Discard, func() {}
	}
	return rec, func() { rec.Close() } //nolint:errcheck // best-effort close
}
