// Package config handles loading, validating, and writing shellpipe.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/julianknutsen/shellpipe/internal/events"
	"github.com/julianknutsen/shellpipe/internal/fsys"
	"github.com/julianknutsen/shellpipe/internal/shell"
)

const (
	// DefaultPath is the config file looked up when none is given.
	DefaultPath = "shellpipe.toml"

	// EnvConfig overrides DefaultPath.
	EnvConfig = "SHELLPIPE_CONFIG"

	// DefaultEventsPath is where the event log lives unless configured.
	DefaultEventsPath = ".shellpipe/events.jsonl"
)

// Config is the top-level shellpipe.toml document.
type Config struct {
	// Session holds settings shared by every session.
	Session Session `toml:"session"`
	// Shell is the unprivileged interpreter.
	Shell Program `toml:"shell"`
	// Privileged is the elevated interpreter, usually su.
	Privileged Program `toml:"privileged"`
	// Custom is a user-chosen interpreter with no default command.
	Custom Program `toml:"custom"`
	// Events configures the local event log.
	Events Events `toml:"events"`
}

// Session holds the session tunables.
type Session struct {
	// StartupTimeout bounds the readiness probe, as a Go duration string.
	StartupTimeout string `toml:"startup_timeout" jsonschema:"default=25s"`
	// Retries is how many extra spawn attempts follow an access-denied or
	// spawn failure.
	Retries int `toml:"retries" jsonschema:"default=3,minimum=0"`
	// Capacity is the command history size at which the writer compacts.
	Capacity int `toml:"capacity" jsonschema:"default=5000,minimum=4"`
	// Marker delimits command output from completion records. It must not
	// contain whitespace or a single quote.
	Marker string `toml:"marker"`
	// OOMAdjust asks the kernel to spare interpreters under memory pressure.
	OOMAdjust bool `toml:"oom_adjust,omitempty"`
	// LockDir holds cross-process spawn locks. Empty disables locking.
	LockDir string `toml:"lock_dir,omitempty"`
}

// Program describes how to launch one interpreter.
type Program struct {
	// Command is the argv of the interpreter.
	Command []string `toml:"command,omitempty"`
	// Dir is the working directory. Empty inherits shellpipe's.
	Dir string `toml:"dir,omitempty"`
	// Env is added to the inherited environment.
	Env map[string]string `toml:"env,omitempty"`
}

// Events configures the JSONL event log.
type Events struct {
	// Path of the log file. Empty disables recording.
	Path string `toml:"path"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		Session: Session{
			StartupTimeout: shell.DefaultStartupTimeout.String(),
			Retries:        shell.DefaultRetries,
			Capacity:       shell.DefaultCapacity,
			Marker:         shell.DefaultMarker,
		},
		Shell:      Program{Command: []string{"sh"}},
		Privileged: Program{Command: []string{"su"}},
		Events:     Events{Path: DefaultEventsPath},
	}
}

// Path returns the config path to use: explicit if set, else $SHELLPIPE_CONFIG,
// else DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvConfig); v != "" {
		return v
	}
	return DefaultPath
}

// Marshal encodes a Config to TOML bytes.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads and parses the config file at path using the provided
// filesystem. The result is validated.
func Load(fs fsys.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading config %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is [Load], except that a missing file yields [Defaults].
func LoadOrDefault(fs fsys.FS, path string) (*Config, error) {
	cfg, err := Load(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		d := Defaults()
		return &d, nil
	}
	return cfg, err
}

// Parse decodes TOML data on top of [Defaults] and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Session.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.Retries < 0 {
		errs = append(errs, fmt.Errorf("session.retries must not be negative, got %d", c.Session.Retries))
	}
	if c.Session.Capacity < 4 {
		errs = append(errs, fmt.Errorf("session.capacity must be at least 4, got %d", c.Session.Capacity))
	}
	switch m := c.Session.Marker; {
	case m == "":
		errs = append(errs, errors.New("session.marker must not be empty"))
	case strings.ContainsAny(m, " \t\r\n'"):
		errs = append(errs, fmt.Errorf("session.marker %q must not contain whitespace or single quotes", m))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Timeout parses StartupTimeout.
func (s Session) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.StartupTimeout)
	if err != nil {
		return 0, fmt.Errorf("session.startup_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session.startup_timeout must be positive, got %s", s.StartupTimeout)
	}
	return d, nil
}

// Program returns the interpreter configured for purpose.
func (c *Config) Program(purpose shell.Purpose) (Program, error) {
	switch purpose {
	case shell.PurposeShell:
		return c.Shell, nil
	case shell.PurposePrivileged:
		return c.Privileged, nil
	case shell.PurposeCustom:
		if len(c.Custom.Command) == 0 {
			return Program{}, errors.New("custom session has no command; set [custom] command")
		}
		return c.Custom, nil
	default:
		return Program{}, fmt.Errorf("unknown session purpose %q", purpose)
	}
}

// SessionConfig builds the [shell.Config] for purpose. logger and rec may
// be nil.
func (c *Config) SessionConfig(purpose shell.Purpose, logger *slog.Logger, rec events.Recorder) (shell.Config, error) {
	prog, err := c.Program(purpose)
	if err != nil {
		return shell.Config{}, err
	}
	timeout, err := c.Session.Timeout()
	if err != nil {
		return shell.Config{}, err
	}
	return shell.Config{
		Name:           string(purpose),
		Command:        prog.Command,
		Dir:            prog.Dir,
		Env:            prog.Env,
		StartupTimeout: timeout,
		Retries:        c.Session.Retries,
		Capacity:       c.Session.Capacity,
		Marker:         c.Session.Marker,
		OOMAdjust:      c.Session.OOMAdjust,
		Logger:         logger,
		Recorder:       rec,
	}, nil
}

// WriteDefault writes [Defaults] to path, creating parent directories. It
// refuses to overwrite an existing file.
func WriteDefault(fs fsys.FS, path string) error {
	if _, err := fs.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := dirOf(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	d := Defaults()
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
