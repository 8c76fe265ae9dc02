package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spboyer/perfrun/internal/logfiles"
)

// Report is the analysis of one output directory. Perf or Times is nil when
// the corresponding log was not written by the run.
type Report struct {
	Dir   string
	Perf  *PerfStats
	Times *Timeline
}

// AnalyzeDir parses the performance and times logs found in dir. It is an
// error for both to be missing.
func AnalyzeDir(dir string) (*Report, error) {
	rep := &Report{Dir: dir}

	perf, err := readLog(dir, logfiles.Performance, ParsePerformance)
	if err != nil {
		return nil, err
	}
	rep.Perf = perf

	times, err := readLog(dir, logfiles.Times, ParseTimes)
	if err != nil {
		return nil, err
	}
	rep.Times = times

	if rep.Perf == nil && rep.Times == nil {
		return nil, fmt.Errorf("%s: no %s or %s found", dir, logfiles.Performance, logfiles.Times)
	}
	return rep, nil
}

// AnalyzeDirs analyzes each directory concurrently. Reports are returned in
// the order of dirs; the first failure cancels the remaining work.
func AnalyzeDirs(ctx context.Context, dirs ...string) ([]*Report, error) {
	reports := make([]*Report, len(dirs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, err := AnalyzeDir(dir)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// readLog returns nil, nil when the log does not exist.
func readLog[T any](dir, name string, parse func(io.Reader) (*T, error)) (*T, error) {
	path, err := FindLog(dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	v, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
