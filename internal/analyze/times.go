package analyze

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spboyer/perfrun/internal/logfiles"
)

// CommandTiming is the elapsed time of one command in _times.out.
type CommandTiming struct {
	Command string
	Ended   time.Time
	// SinceRunStart is measured from the run's single "started:" line. This
	// is the figure the legacy analysis reported for every command.
	SinceRunStart time.Duration
	// Duration is measured from the end of the previous command, or from the
	// run start for the first command.
	Duration time.Duration
}

// Timeline is the parsed content of _times.out.
type Timeline struct {
	Started  time.Time
	Commands []CommandTiming
}

// Total returns the wall-clock time from run start to the last "ended:" line.
func (t *Timeline) Total() time.Duration {
	if len(t.Commands) == 0 {
		return 0
	}
	return t.Commands[len(t.Commands)-1].SinceRunStart
}

// ParseTimes parses a _times.out log. An "ended:" line without a preceding
// "cmd:" line (the format of older logs) yields a timing with an empty
// command. A later "started:" line, from a rerun appended to the same log,
// resets the baseline of Duration only; SinceRunStart is always measured
// from the first "started:" line.
func ParseTimes(r io.Reader) (*Timeline, error) {
	tl := &Timeline{}
	sc := bufio.NewScanner(r)

	var (
		haveStart bool
		prev      time.Time
		pending   string
		lineNo    int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("line %d: expected \"key: value\", got %q", lineNo, line)
		}
		value = strings.TrimSpace(value)

		switch key {
		case "started":
			t, err := logfiles.ParseTimestamp(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if !haveStart {
				tl.Started = t
			}
			haveStart = true
			prev = t
			pending = ""
		case "cmd":
			pending = value
		case "ended":
			if !haveStart {
				return nil, fmt.Errorf("line %d: \"ended:\" before \"started:\"", lineNo)
			}
			t, err := logfiles.ParseTimestamp(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			tl.Commands = append(tl.Commands, CommandTiming{
				Command:       pending,
				Ended:         t,
				SinceRunStart: t.Sub(tl.Started),
				Duration:      t.Sub(prev),
			})
			prev = t
			pending = ""
		default:
			return nil, fmt.Errorf("line %d: unknown record %q", lineNo, key)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading times log: %w", err)
	}
	if !haveStart {
		return nil, fmt.Errorf("no \"started:\" line")
	}
	return tl, nil
}
