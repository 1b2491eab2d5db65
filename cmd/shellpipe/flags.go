package main

import (
	"errors"
	"time"

	"github.com/julianknutsen/shellpipe/internal/config"
	"github.com/julianknutsen/shellpipe/internal/shell"
	"github.com/spf13/pflag"
)

// sessionFlags are the session overrides shared by run and exec.
type sessionFlags struct {
	privileged bool
	custom     bool
	timeout    time.Duration
	retries    int
	capacity   int
}

// register adds the session flags to fs.
func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.privileged, "privileged", "p", false, "use the privileged session ([privileged] command, default su)")
	fs.BoolVar(&f.custom, "custom", false, "use the custom session ([custom] command)")
	fs.DurationVar(&f.timeout, "timeout", 0, "startup timeout override (e.g. 5s)")
	fs.IntVar(&f.retries, "retries", -1, "spawn retry override (-1 keeps the configured value)")
	fs.IntVar(&f.capacity, "capacity", 0, "command history capacity override")
}

// purpose returns the session the flags select.
func (f *sessionFlags) purpose() (shell.Purpose, error) {
	switch {
	case f.privileged && f.custom:
		return "", errors.New("--privileged and --custom are mutually exclusive")
	case f.privileged:
		return shell.PurposePrivileged, nil
	case f.custom:
		return shell.PurposeCustom, nil
	default:
		return shell.PurposeShell, nil
	}
}

// apply writes the overrides that were set into cfg and re-validates it.
func (f *sessionFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("timeout") {
		cfg.Session.StartupTimeout = f.timeout.String()
	}
	if fs.Changed("retries") && f.retries >= 0 {
		cfg.Session.Retries = f.retries
	}
	if fs.Changed("capacity") {
		cfg.Session.Capacity = f.capacity
	}
	return cfg.Validate()
}
