// Package config provides the run configuration for perfrun and its loader
// for YAML configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Default values for a run configuration. New() references them and no other
// code should duplicate them.
const (
	DefaultTimeIt      = true
	DefaultStd         = true
	DefaultPerformance = true
	DefaultPerfSeconds = 60

	DefaultProbe        = "pidstat"
	DefaultProbeMatch   = MatchName
	DefaultProbeGraceMs = 500
)

// Probe matching modes.
const (
	// MatchName passes the (possibly truncated) executable base name to the
	// probe with -C.
	MatchName = "name"
	// MatchPID passes the target's process id to the probe with -p.
	MatchPID = "pid"
)

// Config is the immutable description of one harness run.
type Config struct {
	// Commands are the target commands, executed in order.
	Commands []string `mapstructure:"command" yaml:"command"`
	// OutputDirectory is the base directory for every log file. Empty means
	// the current working directory.
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory,omitempty"`
	// TimeIt enables _times.out.
	TimeIt bool `mapstructure:"time_it" yaml:"time_it"`
	// Std enables capture of stdout/stderr into _stdout.out and _stderr.out.
	Std bool `mapstructure:"std" yaml:"std"`
	// Performance enables the sampling probe and _performance.out.
	Performance bool `mapstructure:"performance" yaml:"performance"`
	// PerfSeconds is the sampling interval handed to the probe.
	PerfSeconds int `mapstructure:"perf_seconds" yaml:"perf_seconds"`

	// Probe is the probe executable, looked up on PATH.
	Probe string `mapstructure:"probe" yaml:"probe,omitempty"`
	// ProbeMatch selects how the probe finds the target: "name" or "pid".
	ProbeMatch string `mapstructure:"probe_match" yaml:"probe_match,omitempty"`
	// WaitProbe makes the harness wait for the probe to exit after signaling
	// it, instead of returning immediately.
	WaitProbe bool `mapstructure:"wait_probe" yaml:"wait_probe,omitempty"`
	// ProbeGraceMs bounds the wait enabled by WaitProbe before the probe is
	// killed.
	ProbeGraceMs int `mapstructure:"probe_grace_ms" yaml:"probe_grace_ms,omitempty"`
}

// New returns a Config with every default populated and no commands.
func New() *Config {
	return &Config{
		TimeIt:       DefaultTimeIt,
		Std:          DefaultStd,
		Performance:  DefaultPerformance,
		PerfSeconds:  DefaultPerfSeconds,
		Probe:        DefaultProbe,
		ProbeMatch:   DefaultProbeMatch,
		ProbeGraceMs: DefaultProbeGraceMs,
	}
}

// Load reads and decodes the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("reading %s", path), Err: err}
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Msg: "parsing YAML", Err: err}
	}
	if raw == nil {
		return nil, &Error{Field: "command", Msg: "is required"}
	}
	return Decode(raw)
}

// Decode builds a Config from a generic key/value mapping. The command value
// may be a single string or a sequence of strings; either way it is
// normalized to an ordered slice. Unknown keys are rejected.
func Decode(raw map[string]any) (*Config, error) {
	commands, err := normalizeCommands(raw["command"])
	if err != nil {
		return nil, err
	}

	rest := make(map[string]any, len(raw))
	for k, v := range raw {
		rest[k] = v
	}
	rest["command"] = commands

	cfg := New()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(rest); err != nil {
		return nil, &Error{Msg: "decoding", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeCommands(v any) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, &Error{Field: "command", Msg: "is required"}
	case string:
		return []string{c}, nil
	case []string:
		return append([]string(nil), c...), nil
	case []any:
		out := make([]string, 0, len(c))
		for i, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, &Error{Field: fmt.Sprintf("command[%d]", i), Msg: fmt.Sprintf("must be a string, got %T", item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &Error{Field: "command", Msg: fmt.Sprintf("must be a string or a list of strings, got %T", v)}
	}
}

// Validate checks field values. It is called by Decode, and again by callers
// that override fields after loading.
func (c *Config) Validate() error {
	if len(c.Commands) == 0 {
		return &Error{Field: "command", Msg: "is required"}
	}
	for i, cmd := range c.Commands {
		if strings.TrimSpace(cmd) == "" {
			return &Error{Field: fmt.Sprintf("command[%d]", i), Msg: "must not be empty"}
		}
	}
	if c.PerfSeconds < 1 {
		return &Error{Field: "perf_seconds", Msg: fmt.Sprintf("must be at least 1, got %d", c.PerfSeconds)}
	}
	switch c.ProbeMatch {
	case MatchName, MatchPID:
	default:
		return &Error{Field: "probe_match", Msg: fmt.Sprintf("must be %q or %q, got %q", MatchName, MatchPID, c.ProbeMatch)}
	}
	if c.Performance && strings.TrimSpace(c.Probe) == "" {
		return &Error{Field: "probe", Msg: "must not be empty when performance is enabled"}
	}
	if c.ProbeGraceMs < 0 {
		return &Error{Field: "probe_grace_ms", Msg: "must not be negative"}
	}
	return nil
}

// Resolve makes OutputDirectory absolute. An empty directory resolves to cwd.
func (c *Config) Resolve(cwd string) {
	if c.OutputDirectory == "" {
		c.OutputDirectory = cwd
		return
	}
	if !filepath.IsAbs(c.OutputDirectory) {
		c.OutputDirectory = filepath.Join(cwd, c.OutputDirectory)
	}
	c.OutputDirectory = filepath.Clean(c.OutputDirectory)
}

// Marshal renders c as a YAML configuration document.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Error is a configuration error. It is returned before any process is
// spawned or any output file is touched.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Msg != "" {
		if e.Field != "" {
			b.WriteString(" ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}
