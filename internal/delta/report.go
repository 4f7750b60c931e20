package delta

import (
	"encoding/json"
	"fmt"
	"strings"

	"auditdiff/internal/classify"
	"auditdiff/internal/ndjson"
	"auditdiff/internal/snapshot"
)

// Report holds every diff section computed between a baseline and a current
// audit run. Built once per invocation, then rendered in text or NDJSON mode.
type Report struct {
	Storage     []ByteDelta
	Counts      []CountDelta
	Security    []FlagChange
	Homebrew    []CountDelta
	NewWarnings []string
	Probes      []Entry
}

// Build computes the full diff between two sets of audit rows.
// The only fatal condition is a structurally invalid snapshot row; sections
// whose rows are missing on either side simply produce no deltas.
func Build(baselineRows, currentRows []ndjson.Row, rules classify.Ruleset) (Report, error) {
	baseByType := ndjson.GroupByType(baselineRows)
	currByType := ndjson.GroupByType(currentRows)

	basePF, err := snapshotFromRows(baseByType)
	if err != nil {
		return Report{}, fmt.Errorf("baseline: %w", err)
	}
	currPF, err := snapshotFromRows(currByType)
	if err != nil {
		return Report{}, fmt.Errorf("current: %w", err)
	}

	return Report{
		Storage:     storageDelta(baseByType["summary"], currByType["summary"]),
		Counts:      countDelta(baseByType["counts"], currByType["counts"], countFields),
		Security:    securityDelta(baseByType["security_config"], currByType["security_config"]),
		Homebrew:    countDelta(baseByType["homebrew_summary"], currByType["homebrew_summary"], homebrewFields),
		NewWarnings: newWarnings(baselineRows, currentRows),
		Probes:      Detect(basePF, currPF, rules),
	}, nil
}

func snapshotFromRows(byType map[string]ndjson.Row) (snapshot.Snapshot, error) {
	row, ok := byType[snapshot.RowType]
	if !ok {
		return snapshot.Snapshot{Items: map[string]snapshot.Stat{}}, nil
	}
	return snapshot.FromRow(row)
}

// HasChanges reports whether any section produced a delta. Drives the
// process exit contract: 2 when true, 0 when false.
func (r Report) HasChanges() bool {
	return len(r.Storage) > 0 || len(r.Counts) > 0 || len(r.Security) > 0 ||
		len(r.Homebrew) > 0 || len(r.NewWarnings) > 0 || len(r.Probes) > 0
}

// Text renders the human-readable Markdown report.
func (r Report) Text() string {
	var sb strings.Builder

	if len(r.Storage) > 0 {
		sb.WriteString("## Storage delta\n")
		for _, d := range r.Storage {
			sign := "+"
			if d.Delta < 0 {
				sign = "-"
			}
			fmt.Fprintf(&sb, "  %s: %s → %s (%s%s, %+.1f%%)\n",
				d.Field, formatBytes(d.Baseline), formatBytes(d.Current), sign, formatBytes(d.Delta), d.PctChange)
		}
		sb.WriteString("\n")
	}

	if len(r.Counts) > 0 {
		sb.WriteString("## Count changes\n")
		for _, d := range r.Counts {
			fmt.Fprintf(&sb, "  %s: %d → %d (%s)\n", d.Field, d.Baseline, d.Current, signed(d.Delta))
		}
		sb.WriteString("\n")
	}

	if len(r.Security) > 0 {
		sb.WriteString("## Security config changes\n")
		for _, c := range r.Security {
			fmt.Fprintf(&sb, "  %s: %s → %s\n", c.Field, onOff(c.Baseline), onOff(c.Current))
		}
		sb.WriteString("\n")
	}

	if len(r.Homebrew) > 0 {
		sb.WriteString("## Homebrew delta\n")
		for _, d := range r.Homebrew {
			fmt.Fprintf(&sb, "  %s: %d → %d (%s)\n", d.Field, d.Baseline, d.Current, signed(d.Delta))
		}
		sb.WriteString("\n")
	}

	if len(r.NewWarnings) > 0 {
		sb.WriteString("## New warnings\n")
		for _, c := range r.NewWarnings {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(FormatEntriesText(r.Probes))

	if !r.HasChanges() {
		sb.WriteString("No changes detected between baseline and current.\n")
	}
	return sb.String()
}

// rowEnvelope heads every structured diff row.
type rowEnvelope struct {
	Type     string `json:"type"`
	DiffType string `json:"diff_type"`
}

type storageRow struct {
	rowEnvelope
	ByteDelta
}

type countRow struct {
	rowEnvelope
	CountDelta
}

type securityRow struct {
	rowEnvelope
	FlagChange
}

type warningsRow struct {
	rowEnvelope
	Codes []string `json:"codes"`
}

// NDJSON renders the report as one structured diff row per line. A report
// with no changes renders to an empty string.
func (r Report) NDJSON() (string, error) {
	var sb strings.Builder

	writeRow := func(row any) error {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		sb.Write(data)
		sb.WriteString("\n")
		return nil
	}
	envelope := func(diffType string) rowEnvelope {
		return rowEnvelope{Type: "diff", DiffType: diffType}
	}

	for _, d := range r.Storage {
		if err := writeRow(storageRow{envelope("storage"), d}); err != nil {
			return "", err
		}
	}
	for _, d := range r.Counts {
		if err := writeRow(countRow{envelope("count"), d}); err != nil {
			return "", err
		}
	}
	for _, c := range r.Security {
		if err := writeRow(securityRow{envelope("security_config"), c}); err != nil {
			return "", err
		}
	}
	for _, d := range r.Homebrew {
		if err := writeRow(countRow{envelope("homebrew"), d}); err != nil {
			return "", err
		}
	}
	if len(r.NewWarnings) > 0 {
		if err := writeRow(warningsRow{envelope("new_warnings"), r.NewWarnings}); err != nil {
			return "", err
		}
	}
	for _, e := range r.Probes {
		data, err := MarshalEntry(e)
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
