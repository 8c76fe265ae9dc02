// Package analyze reads the logs produced by a run and summarizes CPU usage,
// memory usage and elapsed time per command.
package analyze

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const kbPerGB = 1024 * 1024

// PerfStats summarizes a probe log.
//
// CPU usage of a sample is the product of the CPU column (logical core index)
// and the %CPU column, as the legacy analysis reported it.
type PerfStats struct {
	CPU []float64
	VSZ []int64 // kB
	RSS []int64 // kB

	MaxCPU float64
	AvgCPU float64
	MaxVSZ int64 // kB
	MaxRSS int64 // kB

	// Skipped counts data rows that could not be parsed, such as a partial
	// last line written while the probe was being terminated.
	Skipped int
}

// Samples returns the number of rows that carried CPU data.
func (s *PerfStats) Samples() int {
	return len(s.CPU)
}

// MaxVSZGB returns the peak virtual memory size in GB.
func (s *PerfStats) MaxVSZGB() float64 {
	return float64(s.MaxVSZ) / kbPerGB
}

// MaxRSSGB returns the peak resident set size in GB.
func (s *PerfStats) MaxRSSGB() float64 {
	return float64(s.MaxRSS) / kbPerGB
}

// ParsePerformance parses pidstat text output. The first line (the system
// banner) is skipped, as are blank lines, repeated banners from appended runs
// and the "Average:" summary pidstat prints when it is stopped. Every line
// starting with '#' redefines the column names for the rows that follow.
// Timestamps may be epoch seconds or a 12-hour clock ("03:23:18 PM"); the
// AM/PM token shifts the data columns by one.
func ParsePerformance(r io.Reader) (*PerfStats, error) {
	stats := &PerfStats{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var columns map[string]int
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			columns = make(map[string]int)
			for i, name := range strings.Fields(line[1:]) {
				columns[name] = i
			}
			continue
		}

		fields := strings.Fields(line)
		if fields[0] == "Average:" || fields[0] == "Linux" || columns == nil {
			continue
		}
		if !stats.addRow(columns, fields) {
			stats.Skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading performance log: %w", err)
	}

	stats.summarize()
	return stats, nil
}

// addRow records the CPU and memory values of one data row. It reports false,
// recording nothing, when a column named by the header is missing or
// malformed in the row.
func (s *PerfStats) addRow(columns map[string]int, fields []string) bool {
	offset := 0
	if len(fields) > 1 && (fields[1] == "AM" || fields[1] == "PM") {
		offset = 1
	}
	has := func(name string) bool {
		_, ok := columns[name]
		return ok
	}
	get := func(name string) (string, bool) {
		i := columns[name] + offset
		if i >= len(fields) {
			return "", false
		}
		return fields[i], true
	}
	getKB := func(name string) (int64, bool) {
		v, ok := get(name)
		if !ok {
			return 0, false
		}
		kb, err := strconv.ParseInt(v, 10, 64)
		return kb, err == nil
	}

	hasCPU := has("CPU") && has("%CPU")
	var cpu float64
	if hasCPU {
		core, ok1 := get("CPU")
		pct, ok2 := get("%CPU")
		if !ok1 || !ok2 {
			return false
		}
		n, err := strconv.Atoi(core)
		if err != nil {
			return false
		}
		p, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return false
		}
		cpu = float64(n) * p
	}

	var vsz, rss int64
	var ok bool
	if has("VSZ") {
		if vsz, ok = getKB("VSZ"); !ok {
			return false
		}
	}
	if has("RSS") {
		if rss, ok = getKB("RSS"); !ok {
			return false
		}
	}

	if hasCPU {
		s.CPU = append(s.CPU, cpu)
	}
	if has("VSZ") {
		s.VSZ = append(s.VSZ, vsz)
	}
	if has("RSS") {
		s.RSS = append(s.RSS, rss)
	}
	return true
}

func (s *PerfStats) summarize() {
	if len(s.CPU) > 0 {
		s.MaxCPU = floats.Max(s.CPU)
		s.AvgCPU = stat.Mean(s.CPU, nil)
	}
	s.MaxVSZ = maxInt64(s.VSZ)
	s.MaxRSS = maxInt64(s.RSS)
}

func maxInt64(values []int64) int64 {
	var m int64
	for i, v := range values {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}
