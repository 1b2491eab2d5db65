package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/spf13/cobra"
)

func newEventsCmd(stdout, stderr io.Writer) *cobra.Command {
	var typeFilter string
	var sinceFlag string
	var follow bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the session event log",
		Long: `Show the session event log configured by [events] path.

With --follow, the log is tailed: existing events are printed, then new
ones as sessions record them, until interrupted or --timeout passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			if cfg.Events.Path == "" {
				fmt.Fprintln(stderr, "shellpipe events: event log disabled ([events] path is empty)") //nolint:errcheck // best-effort stderr
				return errExit
			}
			filter := events.Filter{Type: typeFilter}
			if sinceFlag != "" {
				d, err := time.ParseDuration(sinceFlag)
				if err != nil {
					fmt.Fprintf(stderr, "shellpipe events: invalid --since %q: %v\n", sinceFlag, err) //nolint:errcheck // best-effort stderr
					return errExit
				}
				filter.Since = time.Now().Add(-d)
			}
			if follow {
				ctx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				if doEventsFollow(ctx, cfg.Events.Path, filter, stdout, stderr) != 0 {
					return errExit
				}
				return nil
			}
			if doEvents(cfg.Events.Path, filter, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFilter, "type", "", "filter by event type (e.g. command.finished)")
	cmd.Flags().StringVar(&sinceFlag, "since", "", "show events since duration ago (e.g. 1h, 30m)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing events as they are recorded")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop following after this long (0 = until interrupted)")
	return cmd
}

// doEvents prints the matching events as a table. Accepts the path
// directly for testability.
func doEvents(path string, filter events.Filter, stdout, stderr io.Writer) int {
	evts, err := events.ReadFiltered(path, filter)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if len(evts) == 0 {
		fmt.Fprintln(stdout, "No events.") //nolint:errcheck // best-effort stdout
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTYPE\tSESSION\tSUBJECT\tMESSAGE\tTIME") //nolint:errcheck // best-effort stdout
	for _, e := range evts {
		writeEventRow(tw, e)
	}
	tw.Flush() //nolint:errcheck // best-effort stdout
	return 0
}

func writeEventRow(w io.Writer, e events.Event) {
	msg := e.Message
	if len(msg) > 40 {
		msg = msg[:37] + "..."
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // best-effort stdout
		e.Seq, e.Type, e.Actor, e.Subject, msg,
		e.Ts.Format("2006-01-02 15:04:05"),
	)
}

// doEventsFollow prints existing matching events, then tails the log. It
// returns 0 when ctx ends.
func doEventsFollow(ctx context.Context, path string, filter events.Filter, stdout, stderr io.Writer) int {
	existing, err := events.ReadFiltered(path, filter)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	for _, e := range existing {
		writeEventRow(stdout, e)
	}
	after, err := events.ReadLatestSeq(path)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}

	w, err := events.Follow(ctx, path, after)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer w.Close() //nolint:errcheck // best-effort close

	for {
		e, err := w.Next()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0
			}
			fmt.Fprintf(stderr, "shellpipe events: %v\n", err) //nolint:errcheck // best-effort stderr
			return 1
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		writeEventRow(stdout, e)
	}
}
