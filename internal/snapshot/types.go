// Package snapshot builds per-probe failure statistics from raw audit events
// and models the probe_failures_summary exchange row shared between runs.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"auditdiff/internal/ndjson"
)

// RowType is the "type" field of the snapshot exchange row.
const RowType = "probe_failures_summary"

// Histogram maps an exit code to its occurrence count within one snapshot.
// The sum of its values equals the owning Stat's Count.
type Histogram map[int]int

// Codes returns the observed exit codes in ascending order.
func (h Histogram) Codes() []int {
	codes := make([]int, 0, len(h))
	for c := range h {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// Sum returns the total number of occurrences across all codes.
func (h Histogram) Sum() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Equal reports whether two histograms hold the same codes and counts.
// Both sides are integer-keyed, so comparison is representation-independent:
// a histogram decoded from {"1": 5} equals one built as {1: 5}.
func (h Histogram) Equal(other Histogram) bool {
	if len(h) != len(other) {
		return false
	}
	for c, n := range h {
		if other[c] != n {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes a JSON object whose keys are exit codes. Keys that do
// not parse as integers are dropped rather than failing the whole snapshot.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	var raw map[string]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Histogram, len(raw))
	for k, v := range raw {
		code, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		n, err := v.Float64()
		if err != nil {
			continue
		}
		out[code] = int(n)
	}
	*h = out
	return nil
}

// Stat holds the aggregated failure statistics for one probe within one run.
// Immutable once built by the aggregator.
type Stat struct {
	Probe       string    `json:"probe"`
	Count       int       `json:"count"`
	FirstTSMs   int64     `json:"first_ts_ms"`
	LastTSMs    int64     `json:"last_ts_ms"`
	DurationMS  int64     `json:"duration_ms"`
	FailureRate float64   `json:"failure_rate"`
	ExitCodes   Histogram `json:"exit_codes"`
}

// Snapshot is the complete set of per-probe failure statistics for one run.
type Snapshot struct {
	RunID string
	Items map[string]Stat
}

// Probes returns the probe identifiers present in the snapshot, sorted.
func (s Snapshot) Probes() []string {
	probes := make([]string, 0, len(s.Items))
	for p := range s.Items {
		probes = append(probes, p)
	}
	sort.Strings(probes)
	return probes
}

type snapshotRow struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	Items []Stat `json:"items"`
}

// MarshalJSON renders the snapshot as its exchange row with items sorted by
// probe identifier.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	row := snapshotRow{Type: RowType, RunID: s.RunID, Items: make([]Stat, 0, len(s.Items))}
	for _, p := range s.Probes() {
		row.Items = append(row.Items, s.Items[p])
	}
	return json.Marshal(row)
}

// UnmarshalJSON decodes an exchange row. Items with an empty probe identifier
// are dropped; duplicate probes keep the last item.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var row snapshotRow
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	out := Snapshot{RunID: row.RunID, Items: make(map[string]Stat, len(row.Items))}
	for _, it := range row.Items {
		if it.Probe == "" {
			continue
		}
		out.Items[it.Probe] = it
	}
	*s = out
	return nil
}

// FromRow converts a loosely-typed NDJSON row into a Snapshot. A structurally
// invalid row is a boundary error surfaced to the caller.
func FromRow(row ndjson.Row) (Snapshot, error) {
	data, err := json.Marshal(map[string]any(row))
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot row: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("invalid %s row: %w", RowType, err)
	}
	return snap, nil
}
