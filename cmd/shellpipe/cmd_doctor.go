package main

import (
	"io"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/doctor"
	"github.com/julianknutsen/shellpipe/internal/shell"
	"github.com/spf13/cobra"
)

func newDoctorCmd(stdout, stderr io.Writer) *cobra.Command {
	var fix, noProbe bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that sessions can start",
		Long: `Run diagnostic health checks on the shellpipe setup.

Checks that the config loads, that each configured interpreter is on
PATH, that the event log and lock directories are writable, and that an
unprivileged session starts and round-trips a command. Use --fix to
create missing directories. The privileged session is never probed
since it may prompt for a password.`,
		Example: `  shellpipe doctor
  shellpipe doctor --fix
  shellpipe doctor --no-probe -v`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if doDoctor(fix, noProbe, stdout, stderr) != 0 {
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "attempt to fix issues automatically")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "skip starting a live session")
	return cmd
}

// doDoctor runs all health checks and prints results. Exits 1 if any
// check failed.
func doDoctor(fix, noProbe bool, stdout, _ io.Writer) int {
	cfg, path, loadErr := loadConfig()
	if loadErr != nil {
		// Later checks still run against the defaults.
		d := config.Defaults()
		cfg = &d
	}

	d := &doctor.Doctor{}
	ctx := &doctor.CheckContext{ConfigPath: path, Config: cfg, Verbose: verboseFlag}

	d.Register(doctor.NewConfigCheck(loadErr))
	d.Register(&doctor.InterpreterCheck{Purpose: shell.PurposeShell, Required: true})
	d.Register(&doctor.InterpreterCheck{Purpose: shell.PurposePrivileged})
	d.Register(&doctor.InterpreterCheck{Purpose: shell.PurposeCustom, Required: true})
	d.Register(doctor.NewEventsDirCheck())
	d.Register(doctor.NewLockDirCheck())
	if !noProbe && loadErr == nil {
		d.Register(&doctor.SessionCheck{Purpose: shell.PurposeShell})
	}

	report := d.Run(ctx, stdout, fix)
	doctor.PrintSummary(stdout, report)
	if !report.OK() {
		return 1
	}
	return 0
}
