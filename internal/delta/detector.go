// Package delta compares two audit snapshots and renders the change report.
// The probe-failure differ keys on a stable fingerprint (count, exit-code
// histogram, expected state) and deliberately ignores timing fields, which
// vary run-to-run even for an identical failure pattern.
package delta

import (
	"sort"

	"auditdiff/internal/classify"
	"auditdiff/internal/snapshot"
)

// Status classifies how a probe's failure pattern moved between runs.
type Status string

const (
	StatusNew      Status = "new"      // Probe failing in current but not baseline
	StatusResolved Status = "resolved" // Probe failing in baseline but not current
	StatusChanged  Status = "changed"  // Probe in both with a different fingerprint
)

// statusRank maps status to sort priority within a severity tier.
var statusRank = map[Status]int{StatusNew: 0, StatusResolved: 1, StatusChanged: 2}

// Entry is one probe-failure diff result, consumed only by the reporter.
type Entry struct {
	Status        Status
	Probe         string
	Severity      classify.Severity
	Topic         string
	Expected      []int // expected exit codes, ascending
	ExpectedState classify.State
	Baseline      *snapshot.Stat // nil for new probes
	Current       *snapshot.Stat // nil for resolved probes
	// ExitCodesDelta holds current minus baseline per code, nonzero entries
	// only. Populated for changed probes.
	ExitCodesDelta map[int]int
}

// Detect compares the probe sets of two snapshots and returns the ordered
// diff entries. An empty result is a valid "no probe-failure changes" answer.
func Detect(baseline, current snapshot.Snapshot, rules classify.Ruleset) []Entry {
	var entries []Entry

	for probe, stat := range current.Items {
		if _, ok := baseline.Items[probe]; ok {
			continue
		}
		stat := stat
		entries = append(entries, newEntry(StatusNew, probe, nil, &stat, rules))
	}
	for probe, stat := range baseline.Items {
		if _, ok := current.Items[probe]; ok {
			continue
		}
		stat := stat
		entries = append(entries, newEntry(StatusResolved, probe, &stat, nil, rules))
	}
	for probe, base := range baseline.Items {
		curr, ok := current.Items[probe]
		if !ok || !fingerprintChanged(probe, base, curr, rules) {
			continue
		}
		base, curr := base, curr
		e := newEntry(StatusChanged, probe, &base, &curr, rules)
		e.ExitCodesDelta = exitCodesDelta(base.ExitCodes, curr.ExitCodes)
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ra, rb := classify.SeverityRank(a.Severity), classify.SeverityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if ra, rb := statusRank[a.Status], statusRank[b.Status]; ra != rb {
			return ra < rb
		}
		return a.Probe < b.Probe
	})
	return entries
}

func newEntry(status Status, probe string, base, curr *snapshot.Stat, rules classify.Ruleset) Entry {
	// Resolved probes only have a baseline histogram to judge.
	judged := curr
	if judged == nil {
		judged = base
	}
	return Entry{
		Status:        status,
		Probe:         probe,
		Severity:      rules.Severity(probe),
		Topic:         rules.Topic(probe),
		Expected:      rules.ExpectedCodes(probe),
		ExpectedState: rules.ExpectedState(probe, judged.ExitCodes),
		Baseline:      base,
		Current:       curr,
	}
}

// fingerprintChanged reports whether the stable fingerprint differs between
// the two stats. Timestamps, duration, and failure rate are excluded.
func fingerprintChanged(probe string, base, curr snapshot.Stat, rules classify.Ruleset) bool {
	if base.Count != curr.Count {
		return true
	}
	if !base.ExitCodes.Equal(curr.ExitCodes) {
		return true
	}
	return rules.ExpectedState(probe, base.ExitCodes) != rules.ExpectedState(probe, curr.ExitCodes)
}

// exitCodesDelta computes current minus baseline over the union of codes,
// keeping only nonzero deltas.
func exitCodesDelta(base, curr snapshot.Histogram) map[int]int {
	delta := make(map[int]int)
	for c, n := range curr {
		delta[c] = n
	}
	for c, n := range base {
		delta[c] -= n
	}
	for c, d := range delta {
		if d == 0 {
			delete(delta, c)
		}
	}
	return delta
}
