package logfiles

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout written to _times.out: local time
// with microseconds and no zone.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Line prefixes of _times.out.
const (
	StartedPrefix = "started: "
	CmdPrefix     = "cmd: "
	EndedPrefix   = "ended: "
)

// TimesWriter appends timing records to _times.out. Each record is written
// and closed immediately; the file is never rewritten after the first line.
type TimesWriter struct {
	opener *Opener
}

// NewTimesWriter returns a TimesWriter writing through opener.
func NewTimesWriter(opener *Opener) *TimesWriter {
	return &TimesWriter{opener: opener}
}

// Started writes the run's single "started:" line.
func (w *TimesWriter) Started(t time.Time) error {
	return w.write(StartedPrefix + FormatTimestamp(t) + "\n")
}

// Ended writes a "cmd:" line followed by its "ended:" line.
func (w *TimesWriter) Ended(command string, t time.Time) error {
	// Keep the record on two lines even for multi-line commands.
	command = strings.ReplaceAll(command, "\n", " ")
	return w.write(CmdPrefix + command + "\n" + EndedPrefix + FormatTimestamp(t) + "\n")
}

func (w *TimesWriter) write(s string) error {
	f, err := w.opener.Open(Times)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", Times, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", Times, err)
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp parses a timestamp written by FormatTimestamp. RFC 3339
// timestamps and timestamps without fractional seconds are accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
