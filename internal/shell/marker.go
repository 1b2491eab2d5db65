package shell

import (
	"strconv"
	"strings"
)

// DefaultMarker delimits a command's output from its completion record.
// It only has to be unlikely in real output: a record is accepted only
// when its sequence id matches the reader's expectation.
const DefaultMarker = "F*D^W@#FGF"

// completionLine returns the synthetic line written after every command.
// The marker is single-quoted so the shell never globs it; the expansion
// reaches the output stream as "<marker> <seq> <exit>".
func completionLine(marker string, seq int) string {
	return "\necho '" + marker + "' " + strconv.Itoa(seq) + " $?\n"
}

// splitMarker locates marker in line. prefix is any output the command
// printed without a trailing newline; record starts at the marker.
func splitMarker(line, marker string) (prefix, record string, found bool) {
	pos := strings.Index(line, marker)
	if pos < 0 {
		return "", "", false
	}
	return line[:pos], line[pos:], true
}

// parseRecord reads a completion record of the form
// "<marker> <seq> <exit>". ok is false when the record has fewer than two
// fields. An unparsable seq yields 0, an unparsable or missing exit
// status yields -1.
//
// The exit status is taken from the third field by position; extra
// fields or irregular spacing in front of it are not re-interpreted.
func parseRecord(record string) (seq, exitCode int, ok bool) {
	fields := strings.Fields(record)
	if len(fields) < 2 {
		return 0, -1, false
	}
	seq, err := strconv.Atoi(fields[1])
	if err != nil {
		seq = 0
	}
	exitCode = -1
	if len(fields) > 2 {
		if n, err := strconv.Atoi(fields[2]); err == nil {
			exitCode = n
		}
	}
	return seq, exitCode, true
}
