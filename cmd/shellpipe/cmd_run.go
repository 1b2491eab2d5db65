package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/julianknutsen/shellpipe/internal/shell"
	"github.com/spf13/cobra"
)

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "run [CMD...]",
		Short: "Run commands back-to-back in one session",
		Long: `Run commands back-to-back in one interpreter session.

Each argument is one command. shellpipe flags must come before the
first command. With no arguments, each non-blank line of
stdin is a command, submitted as soon as it is read. Output is streamed
to stdout as it arrives; every command's outcome is reported on stderr
as "[N] exit CODE" or "[N] terminated: REASON". Exits 1 if any command
failed or was terminated.`,
		Example: `  shellpipe run 'cd /tmp' 'ls -la' 'echo $?'
  printf 'id\nuname -a\n' | shellpipe run
  shellpipe run --privileged 'whoami'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doRun(cmd, &flags, args, cmd.InOrStdin(), stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	// Everything after the first command belongs to the commands.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// doRun submits every command to one session and waits for the session to
// drain. Returns the process exit code.
func doRun(cmd *cobra.Command, flags *sessionFlags, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx := cmd.Context()
	s, cleanup, err := openSession(ctx, cmd, flags, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "shellpipe run: %v\n", err) //nolint:errcheck // best-effort stderr
		return 1
	}
	defer cleanup()

	rep := &reporter{stdout: stdout, stderr: stderr}
	nextID := 0
	submit := func(text string) bool {
		nextID++
		if err := s.Add(shell.NewCommand(nextID, text, rep)); err != nil {
			fmt.Fprintf(stderr, "shellpipe run: [%d] %v\n", nextID, err) //nolint:errcheck // best-effort stderr
			rep.fail()
			return false
		}
		return true
	}

	if len(args) > 0 {
		for _, a := range args {
			if !submit(a) {
				break
			}
		}
	} else {
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !submit(line) {
				break
			}
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintf(stderr, "shellpipe run: reading stdin: %v\n", err) //nolint:errcheck // best-effort stderr
			rep.fail()
		}
	}

	awaitSession(ctx, s)
	if msg := s.Err(); msg != "" && rep.failed() {
		fmt.Fprintf(stderr, "shellpipe run: session: %s\n", msg) //nolint:errcheck // best-effort stderr
	}
	if rep.failed() {
		return 1
	}
	return 0
}

// reporter prints command results as they arrive. It is a shell.Handler
// shared by every command of one run.
type reporter struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	bad    bool
}

func (r *reporter) Output(_ int, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.stdout, line) //nolint:errcheck // best-effort stdout
}

func (r *reporter) Finished(id, exitCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.stderr, "[%d] exit %d\n", id, exitCode) //nolint:errcheck // best-effort stderr
	if exitCode != 0 {
		r.bad = true
	}
}

func (r *reporter) Terminated(id int, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.stderr, "[%d] terminated: %s\n", id, reason) //nolint:errcheck // best-effort stderr
	r.bad = true
}

func (r *reporter) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bad = true
}

func (r *reporter) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bad
}
