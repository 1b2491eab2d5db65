package shell

import "errors"

var (
	// ErrStartupTimeout is returned by [Start] when the spawned process does
	// not echo the readiness probe within the configured window. The
	// process has been killed and its pipes closed.
	ErrStartupTimeout = errors.New("shell startup timed out")

	// ErrAccessDenied is returned by [Start] when the probe hits an I/O
	// failure, which for an elevation program (su) almost always means the
	// request was refused. Spawn-level retries apply.
	ErrAccessDenied = errors.New("shell access denied")

	// ErrSpawn wraps failures to create the process itself (missing
	// binary, pipe creation). Spawn-level retries apply.
	ErrSpawn = errors.New("spawning shell")

	// ErrIllegalState is returned by [Session.Add] once Close has been
	// requested or the session's process has gone away.
	ErrIllegalState = errors.New("unable to add commands to a closed shell")
)

// UnexpectedTermination is the reason delivered to every command that was
// still queued or executing when the process output stream ended.
const UnexpectedTermination = "Unexpected Termination."
