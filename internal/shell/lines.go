package shell

import (
	"bufio"
	"io"
	"strings"
)

// lineReader yields newline-delimited lines of any length. The prober and
// the reader loop share one instance so no buffered output is lost
// between them.
type lineReader struct {
	br *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line without its terminator. A final line with no
// newline is returned before io.EOF.
func (l *lineReader) next() (string, error) {
	line, err := l.br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
