// Package spinner draws a one-line progress indicator while a target command
// runs.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// IsTerminal reports whether w is a terminal the spinner can redraw.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start draws an animated spinner labeled with label and the elapsed time on
// w. Call the returned function to stop the spinner and clear the line.
func Start(w io.Writer, label string) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	var stopOnce sync.Once
	began := time.Now()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		width := 0
		for i := 0; ; i++ {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(cleared)
				return
			case <-ticker.C:
				line := fmt.Sprintf("%s %s (%s)", frames[i%len(frames)], label, time.Since(began).Round(time.Second))
				if n := len([]rune(line)); n > width {
					width = n
				}
				fmt.Fprintf(w, "\r%s", line) //nolint:errcheck
			}
		}
	}()

	return func() {
		stopOnce.Do(func() {
			close(done)
		})
		<-cleared
	}
}
