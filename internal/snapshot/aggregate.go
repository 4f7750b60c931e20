package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Event is one raw probe failure observation parsed from a TSV line.
type Event struct {
	Probe    string
	TSMs     int64
	ExitCode int
}

// ParseEventLine parses one "probe\tts_ms\texit_code" line.
// It returns ok=false for lines that must be skipped: blank lines, fewer
// than three fields, an empty probe identifier, or a numeric field that is
// present but does not parse. An empty numeric field defaults to 0.
func ParseEventLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 || parts[0] == "" {
		return Event{}, false
	}

	var ts int64
	if parts[1] != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return Event{}, false
		}
		ts = v
	}
	var code int
	if parts[2] != "" {
		v, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return Event{}, false
		}
		code = v
	}
	return Event{Probe: parts[0], TSMs: ts, ExitCode: code}, true
}

type group struct {
	count int
	first int64
	last  int64
	codes Histogram
}

// Aggregate consumes TSV event lines from r and returns one Snapshot keyed by
// runID, with one Stat per distinct probe. Malformed lines are skipped
// silently; only a read failure is an error.
func Aggregate(r io.Reader, runID string) (Snapshot, error) {
	groups := make(map[string]*group)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)
	for scanner.Scan() {
		ev, ok := ParseEventLine(scanner.Text())
		if !ok {
			continue
		}
		g, seen := groups[ev.Probe]
		if !seen {
			g = &group{first: ev.TSMs, last: ev.TSMs, codes: make(Histogram)}
			groups[ev.Probe] = g
		}
		g.count++
		if ev.TSMs < g.first {
			g.first = ev.TSMs
		}
		if ev.TSMs > g.last {
			g.last = ev.TSMs
		}
		g.codes[ev.ExitCode]++
	}
	if err := scanner.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read events: %w", err)
	}

	snap := Snapshot{RunID: runID, Items: make(map[string]Stat, len(groups))}
	for probe, g := range groups {
		snap.Items[probe] = buildStat(probe, g)
	}
	return snap, nil
}

const maxLineSize = 1024 * 1024

// buildStat derives the immutable per-probe statistics from a running group.
// The rate denominator is the duration in seconds only when strictly greater
// than one second; otherwise 1, so short bursts report their raw count.
func buildStat(probe string, g *group) Stat {
	durMS := g.last - g.first
	durSec := float64(durMS) / 1000.0
	denom := 1.0
	if durSec > 1 {
		denom = durSec
	}
	rate := float64(g.count) / denom
	return Stat{
		Probe:       probe,
		Count:       g.count,
		FirstTSMs:   g.first,
		LastTSMs:    g.last,
		DurationMS:  durMS,
		FailureRate: round4(rate),
		ExitCodes:   g.codes,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
