// Package wizard collects a run configuration interactively and renders it as
// a commented YAML file.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/spboyer/perfrun/internal/config"
	"github.com/spboyer/perfrun/internal/runner"
)

// Answers holds the raw values entered in the form.
type Answers struct {
	Commands        string // one command per line
	OutputDirectory string
	PerfSeconds     string
	ProbeMatch      string
	TimeIt          bool
	Std             bool
	Performance     bool
}

// DefaultAnswers returns answers prefilled from config.New().
func DefaultAnswers() *Answers {
	d := config.New()
	return &Answers{
		PerfSeconds: strconv.Itoa(d.PerfSeconds),
		ProbeMatch:  d.ProbeMatch,
		TimeIt:      d.TimeIt,
		Std:         d.Std,
		Performance: d.Performance,
	}
}

// Config converts the answers into a validated configuration.
func (a *Answers) Config() (*config.Config, error) {
	cfg := config.New()
	cfg.Commands = splitLines(a.Commands)
	cfg.OutputDirectory = strings.TrimSpace(a.OutputDirectory)
	cfg.TimeIt = a.TimeIt
	cfg.Std = a.Std
	cfg.Performance = a.Performance
	if m := strings.TrimSpace(a.ProbeMatch); m != "" {
		cfg.ProbeMatch = m
	}
	if s := strings.TrimSpace(a.PerfSeconds); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, &config.Error{Field: "perf_seconds", Msg: fmt.Sprintf("%q is not a number", s)}
		}
		cfg.PerfSeconds = n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run shows the form on out, reading answers from in. Input that is not a
// terminal is read in huh's accessible (line-by-line) mode.
func Run(in io.Reader, out io.Writer) (*config.Config, error) {
	a := DefaultAnswers()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Commands").
				Description("One command per line, run in order").
				Placeholder("sysbench cpu --time=30 run").
				Value(&a.Commands).
				Validate(validateCommands),
			huh.NewInput().
				Title("Output directory").
				Description("Where the _*.out logs are written (empty: current directory)").
				Value(&a.OutputDirectory),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Record elapsed time?").
				Value(&a.TimeIt),
			huh.NewConfirm().
				Title("Capture stdout and stderr?").
				Value(&a.Std),
			huh.NewConfirm().
				Title("Sample CPU and memory with the probe?").
				Value(&a.Performance),
			huh.NewInput().
				Title("Sampling interval (seconds)").
				Value(&a.PerfSeconds).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("interval must be a positive whole number")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Probe matching").
				Options(
					huh.NewOption("by executable name (-C)", config.MatchName),
					huh.NewOption("by process id (-p)", config.MatchPID),
				).
				Value(&a.ProbeMatch),
		),
	).
		WithInput(in).
		WithOutput(out)

	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	return a.Config()
}

func validateCommands(s string) error {
	cmds := splitLines(s)
	if len(cmds) == 0 {
		return fmt.Errorf("at least one command is required")
	}
	for _, c := range cmds {
		if _, _, err := runner.Split(c); err != nil {
			return fmt.Errorf("%q: %w", c, err)
		}
	}
	return nil
}

const configTemplate = `# perfrun configuration
#
# Commands run one after another. Each gets its own probe when performance
# sampling is enabled.
command:
{{- range .Commands }}
  - {{ quote . }}
{{- end }}
{{- if .OutputDirectory }}
output_directory: {{ quote .OutputDirectory }}
{{- else }}
# output_directory: ./results
{{- end }}

# _times.out: one "started:" line, then "cmd:" and "ended:" per command.
time_it: {{ .TimeIt }}
# _stdout.out and _stderr.out
std: {{ .Std }}
# _performance.out, written by the probe every perf_seconds.
performance: {{ .Performance }}
perf_seconds: {{ .PerfSeconds }}
probe: {{ quote .Probe }}
# "name" matches the executable name (truncated to 10 characters); "pid"
# matches the started process.
probe_match: {{ .ProbeMatch }}
`

var tmpl = template.Must(template.New("config").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(configTemplate))

// GenerateConfigYAML renders cfg as a commented YAML configuration file.
func GenerateConfigYAML(cfg *config.Config) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func splitLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
