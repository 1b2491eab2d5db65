package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// maxLine bounds a single JSONL record. Messages carry process output
// excerpts, so allow more than bufio's default.
const maxLine = 1 << 20

// Filter specifies predicates for ReadFiltered. Zero values are ignored.
type Filter struct {
	Type     string    // match events with this Type
	Actor    string    // match events recorded by this session
	Since    time.Time // match events at or after this time
	AfterSeq uint64    // match events with Seq > AfterSeq (0 = no filter)
}

func (f Filter) match(e Event) bool {
	switch {
	case f.AfterSeq > 0 && e.Seq <= f.AfterSeq:
		return false
	case f.Type != "" && e.Type != f.Type:
		return false
	case f.Actor != "" && e.Actor != f.Actor:
		return false
	case !f.Since.IsZero() && e.Ts.Before(f.Since):
		return false
	}
	return true
}

func (f Filter) apply(all []Event) []Event {
	var out []Event
	for _, e := range all {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// scan decodes one event per line from r, skipping malformed lines
// (partial writes), and returns the number of bytes consumed through the
// last newline.
func scan(r io.Reader, fn func(Event)) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var n int64
	for sc.Scan() {
		line := sc.Bytes()
		n += int64(len(line)) + 1
		var e Event
		if json.Unmarshal(line, &e) != nil {
			continue
		}
		fn(e)
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("scanning events: %w", err)
	}
	return n, nil
}

// ReadAll reads all events from the JSONL file at path.
// Returns (nil, nil) if the file is missing or empty.
func ReadAll(path string) ([]Event, error) {
	return ReadFiltered(path, Filter{})
}

// ReadFiltered reads events from path and returns only those matching
// all non-zero fields in filter. Returns (nil, nil) if the file is
// missing or empty.
func ReadFiltered(path string, filter Filter) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading events: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var result []Event
	_, err = scan(f, func(e Event) {
		if filter.match(e) {
			result = append(result, e)
		}
	})
	return result, err
}

// ReadLatestSeq returns the highest Seq in the events file, or 0 if
// the file is missing or empty.
func ReadLatestSeq(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading latest seq: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var maxSeq uint64
	_, err = scan(f, func(e Event) {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	})
	return maxSeq, err
}

// ReadFrom reads events starting at the given byte offset in the file.
// It returns the events read and the offset after the last complete
// line. A trailing line without a newline is left for the next call.
// Returns (nil, offset, nil) if the file does not exist yet.
func ReadFrom(path string, offset int64) ([]Event, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("reading events: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seeking events: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, offset, fmt.Errorf("reading events: %w", err)
	}
	complete := len(data)
	for complete > 0 && data[complete-1] != '\n' {
		complete--
	}

	var result []Event
	n, err := scan(bytes.NewReader(data[:complete]), func(e Event) {
		result = append(result, e)
	})
	return result, offset + n, err
}
