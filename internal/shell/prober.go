package shell

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/julianknutsen/shellpipe/internal/telemetry"
)

// probeResult is the prober's terminal signal.
type probeResult int

const (
	probeReady probeResult = iota
	probeTimeout
	probeDenied
)

func (r probeResult) String() string {
	switch r {
	case probeReady:
		return "ready"
	case probeTimeout:
		return "timeout"
	default:
		return "denied"
	}
}

// probe confirms the process is a live interpreter by having it echo a
// unique token. The exchange runs on its own goroutine; if it does not
// finish within timeout the process is killed and its pipes closed, which
// unblocks the goroutine eventually. It is not waited for.
func (s *Session) probe(ctx context.Context, timeout time.Duration, oomAdjust bool) error {
	token := "Started-" + uuid.NewString()
	begin := time.Now()

	type outcome struct {
		result probeResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		err := s.exchangeProbe(token)
		if err != nil {
			done <- outcome{probeDenied, err}
			return
		}
		if oomAdjust {
			s.adjustOOM()
		}
		done <- outcome{probeReady, nil}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var o outcome
	select {
	case o = <-done:
	case <-timer.C:
		o = outcome{result: probeTimeout}
	case <-ctx.Done():
		s.destroy()
		return ctx.Err()
	}
	telemetry.RecordProbe(ctx, s.name, o.result.String(), float64(time.Since(begin).Milliseconds()))

	switch o.result {
	case probeReady:
		s.log.Debug("shell ready", "probe", token)
		return nil
	case probeTimeout:
		s.destroy()
		return fmt.Errorf("%w after %s: %s", ErrStartupTimeout, timeout, s.diagnostic("no response to probe"))
	default:
		s.destroy()
		return fmt.Errorf("%w: %s", ErrAccessDenied, s.diagnostic(o.err.Error()))
	}
}

// exchangeProbe writes the probe and reads until the echo comes back.
// Blank lines are skipped; anything else is kept as diagnostic text.
func (s *Session) exchangeProbe(token string) error {
	if _, err := io.WriteString(s.stdin, "echo "+token+"\n"); err != nil {
		// The process is already gone; keep whatever it said on the way out.
		s.setErr(err.Error())
		for {
			line, rerr := s.lines.next()
			if rerr != nil {
				return err
			}
			if line != "" {
				s.setErr(line)
			}
		}
	}
	for {
		line, err := s.lines.next()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == token {
			return nil
		}
		s.setErr(line)
	}
}

// adjustOOM lowers the OOM-killer score of the interpreter and of the
// shell it may have exec'd. Output is discarded by the shell itself.
func (s *Session) adjustOOM() {
	pid := strconv.Itoa(s.Pid())
	script := "(echo -1000 > /proc/" + pid + "/oom_score_adj) >/dev/null 2>&1\n" +
		"(echo -1000 > /proc/$$/oom_score_adj) >/dev/null 2>&1\n"
	if _, err := io.WriteString(s.stdin, script); err != nil {
		s.log.Debug("oom adjust failed", "err", err)
	}
}

// diagnostic returns the recorded diagnostic text, or fallback.
func (s *Session) diagnostic(fallback string) string {
	if msg := s.Err(); msg != "" {
		return msg
	}
	return fallback
}
