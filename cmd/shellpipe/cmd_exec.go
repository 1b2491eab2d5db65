package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/julianknutsen/shellpipe/internal/shell"
	"github.com/spf13/cobra"
)

func newExecCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "exec CMD...",
		Short: "Run one command and exit with its status",
		Long: `Run one command in a fresh session and exit with its exit status.

Arguments are joined with spaces into a single command line. shellpipe
flags must come before the command; everything after it is passed
through, so 'shellpipe exec ls -la' works. If the interpreter goes away
before the command completes, the reason is printed to stderr and
shellpipe exits 1.`,
		Example: `  shellpipe exec 'test -d /etc'
  shellpipe exec --privileged cat /etc/shadow`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doExec(cmd, &flags, strings.Join(args, " "), stdout, stderr)
		},
	}
	flags.register(cmd.Flags())
	// Everything after the first command belongs to the commands.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// doExec runs text and maps its outcome to an exit status.
func doExec(cmd *cobra.Command, flags *sessionFlags, text string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()
	s, cleanup, err := openSession(ctx, cmd, flags, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe exec: %v\n", err) //nolint:errcheck // best-effort stderr
		return errExit
	}
	defer cleanup()

	var code int
	var reason string
	c := shell.NewCommand(1, text, shell.HandlerFuncs{
		OnOutput: func(_ int, line string) {
			fmt.Fprintln(stdout, line) //nolint:errcheck // best-effort stdout
		},
		OnFinished:   func(_ int, exitCode int) { code = exitCode },
		OnTerminated: func(_ int, r string) { reason = r },
	})
	if err := s.Add(c); err != nil {
		fmt.Fprintf(stderr, "shellpipe exec: %v\n", err) //nolint:errcheck // best-effort stderr
		return errExit
	}
	awaitSession(ctx, s)

	switch {
	case c.State() == shell.StateTerminated:
		fmt.Fprintf(stderr, "shellpipe exec: terminated: %s\n", reason) //nolint:errcheck // best-effort stderr
		return errExit
	case code == 0:
		return nil
	case code < 0 || code > 255:
		return errExit
	default:
		return exitCodeError{code: code}
	}
}
