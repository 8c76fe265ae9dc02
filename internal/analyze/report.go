package analyze

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format selects how reports are rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatHTML}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want text, json, markdown or html)", s)
}

// Write renders reports to w in the given format.
func Write(w io.Writer, format Format, reports []*Report) error {
	switch format {
	case FormatText:
		return writeText(w, reports)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toJSON(reports))
	case FormatMarkdown:
		return writeMarkdown(w, reports)
	case FormatHTML:
		var md bytes.Buffer
		if err := writeMarkdown(&md, reports); err != nil {
			return err
		}
		gm := goldmark.New(goldmark.WithExtensions(extension.Table))
		return gm.Convert(md.Bytes(), w)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

const (
	colCommand = 40
	colSeconds = 12
)

func writeText(w io.Writer, reports []*Report) error {
	var b strings.Builder
	for i, rep := range reports {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", rep.Dir)
		fmt.Fprintf(&b, "%s\n", strings.Repeat("═", runewidth.StringWidth(rep.Dir)))

		if p := rep.Perf; p != nil {
			fmt.Fprintf(&b, "Samples:     %d", p.Samples())
			if p.Skipped > 0 {
				fmt.Fprintf(&b, " (%d skipped)", p.Skipped)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "Max CPU %%:   %.2f\n", p.MaxCPU)
			fmt.Fprintf(&b, "Avg CPU %%:   %.2f\n", p.AvgCPU)
			fmt.Fprintf(&b, "Max VSZ GB:  %.3f\n", p.MaxVSZGB())
			fmt.Fprintf(&b, "Max RSS GB:  %.3f\n", p.MaxRSSGB())
		}

		if t := rep.Times; t != nil {
			if rep.Perf != nil {
				b.WriteString("\n")
			}
			width := colCommand + colSeconds + len("Duration") + 4
			fmt.Fprintf(&b, "%s  %s  %s\n",
				padRight("Command", colCommand),
				padRight("Since start", colSeconds),
				"Duration")
			fmt.Fprintf(&b, "%s\n", strings.Repeat("─", width))
			for _, c := range t.Commands {
				fmt.Fprintf(&b, "%s  %s  %s\n",
					padRight(truncate(commandLabel(c.Command), colCommand), colCommand),
					padRight(seconds(c.SinceRunStart), colSeconds),
					seconds(c.Duration))
			}
			fmt.Fprintf(&b, "Total: %s\n", seconds(t.Total()))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdown(w io.Writer, reports []*Report) error {
	var b strings.Builder
	b.WriteString("# Performance report\n")
	for _, rep := range reports {
		fmt.Fprintf(&b, "\n## %s\n", rep.Dir)

		if p := rep.Perf; p != nil {
			b.WriteString("\n| Metric | Value |\n|---|---|\n")
			fmt.Fprintf(&b, "| Samples | %d |\n", p.Samples())
			fmt.Fprintf(&b, "| Skipped rows | %d |\n", p.Skipped)
			fmt.Fprintf(&b, "| Max CPU %% | %.2f |\n", p.MaxCPU)
			fmt.Fprintf(&b, "| Avg CPU %% | %.2f |\n", p.AvgCPU)
			fmt.Fprintf(&b, "| Max VSZ GB | %.3f |\n", p.MaxVSZGB())
			fmt.Fprintf(&b, "| Max RSS GB | %.3f |\n", p.MaxRSSGB())
		}

		if t := rep.Times; t != nil {
			b.WriteString("\n| Command | Since start | Duration |\n|---|---|---|\n")
			for _, c := range t.Commands {
				fmt.Fprintf(&b, "| `%s` | %s | %s |\n",
					escapeCell(commandLabel(c.Command)), seconds(c.SinceRunStart), seconds(c.Duration))
			}
			fmt.Fprintf(&b, "\nTotal: %s\n", seconds(t.Total()))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonCommand struct {
	Command              string    `json:"command"`
	Ended                time.Time `json:"ended"`
	SinceRunStartSeconds float64   `json:"since_run_start_seconds"`
	DurationSeconds      float64   `json:"duration_seconds"`
}

type jsonTimes struct {
	Started      time.Time     `json:"started"`
	TotalSeconds float64       `json:"total_seconds"`
	Commands     []jsonCommand `json:"commands"`
}

type jsonPerf struct {
	Samples  int     `json:"samples"`
	Skipped  int     `json:"skipped"`
	MaxCPU   float64 `json:"max_cpu_percent"`
	AvgCPU   float64 `json:"avg_cpu_percent"`
	MaxVSZGB float64 `json:"max_vsz_gb"`
	MaxRSSGB float64 `json:"max_rss_gb"`
}

type jsonReport struct {
	Dir         string     `json:"dir"`
	Performance *jsonPerf  `json:"performance,omitempty"`
	Times       *jsonTimes `json:"times,omitempty"`
}

func toJSON(reports []*Report) []jsonReport {
	out := make([]jsonReport, 0, len(reports))
	for _, rep := range reports {
		jr := jsonReport{Dir: rep.Dir}
		if p := rep.Perf; p != nil {
			jr.Performance = &jsonPerf{
				Samples:  p.Samples(),
				Skipped:  p.Skipped,
				MaxCPU:   p.MaxCPU,
				AvgCPU:   p.AvgCPU,
				MaxVSZGB: p.MaxVSZGB(),
				MaxRSSGB: p.MaxRSSGB(),
			}
		}
		if t := rep.Times; t != nil {
			jt := &jsonTimes{
				Started:      t.Started,
				TotalSeconds: t.Total().Seconds(),
				Commands:     []jsonCommand{},
			}
			for _, c := range t.Commands {
				jt.Commands = append(jt.Commands, jsonCommand{
					Command:              c.Command,
					Ended:                c.Ended,
					SinceRunStartSeconds: c.SinceRunStart.Seconds(),
					DurationSeconds:      c.Duration.Seconds(),
				})
			}
			jr.Times = jt
		}
		out = append(out, jr)
	}
	return out
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func commandLabel(cmd string) string {
	if cmd == "" {
		return "(unnamed)"
	}
	return cmd
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "`", "'")
}
