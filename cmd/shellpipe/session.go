package main

import (
	"context"
	"fmt"
	"io"

	"github.com/julianknutsen/shellpipe/internal/shell"
	"github.com/spf13/cobra"
)

// openSession loads config, applies flag overrides, and starts the
// selected session through a registry. The returned cleanup closes the
// session and the event log; it does not wait.
func openSession(ctx context.Context, cmd *cobra.Command, flags *sessionFlags, stderr io.Writer) (*shell.Session, func(), error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := flags.apply(cmd.Flags(), cfg); err != nil {
		return nil, nil, err
	}
	purpose, err := flags.purpose()
	if err != nil {
		return nil, nil, err
	}

	rec, closeRec := openRecorder(cfg, stderr)
	sc, err := cfg.SessionConfig(purpose, newLogger(stderr), rec)
	if err != nil {
		closeRec()
		return nil, nil, err
	}

	reg := shell.NewRegistry(cfg.Session.LockDir)
	s, err := reg.Start(ctx, purpose, sc)
	if err != nil {
		closeRec()
		return nil, nil, fmt.Errorf("starting %s session: %w", purpose, err)
	}
	return s, func() {
		reg.CloseAll() //nolint:errcheck // Close never fails
		closeRec()
	}, nil
}

// awaitSession closes s and waits for it to finish. If ctx ends first the
// session is killed instead.
func awaitSession(ctx context.Context, s *shell.Session) {
	s.Close() //nolint:errcheck // Close never fails
	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Kill() //nolint:errcheck // best-effort on interrupt
		<-s.Done()
	}
}
