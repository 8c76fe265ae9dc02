// Package logfiles owns the log files a run writes into its output
// directory.
package logfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log file names, relative to the output directory.
const (
	Times       = "_times.out"
	Performance = "_performance.out"
	Stdout      = "_stdout.out"
	Stderr      = "_stderr.out"
)

// Names lists every log file a run can produce.
var Names = []string{Times, Performance, Stdout, Stderr}

// Opener opens log files inside one output directory. The first Open of a
// name during the Opener's lifetime truncates the file; later opens append,
// so a run leaves one contiguous log per file no matter how many commands it
// executes.
type Opener struct {
	dir string

	mu     sync.Mutex
	opened map[string]bool
}

// NewOpener returns an Opener for dir. The directory is created on first
// Open if it does not exist.
func NewOpener(dir string) *Opener {
	return &Opener{
		dir:    dir,
		opened: make(map[string]bool),
	}
}

// Dir returns the output directory.
func (o *Opener) Dir() string {
	return o.dir
}

// Path returns the absolute location of the named log file.
func (o *Opener) Path(name string) string {
	return filepath.Join(o.dir, name)
}

// Open opens the named log file for writing.
func (o *Opener) Open(name string) (*os.File, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.opened) == 0 {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !o.opened[name] {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(o.Path(name), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	o.opened[name] = true
	return f, nil
}
