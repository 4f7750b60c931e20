package delta

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"auditdiff/internal/ndjson"
)

// Flat scalar sections compared field-by-field between the two runs.
var (
	storageFields  = []string{"home_bytes", "downloads_bytes", "desktop_bytes", "trash_bytes"}
	countFields    = []string{"large_files", "node_modules", "broken_symlinks", "git_repos", "venv_cache"}
	securityFields = []string{"filevault", "sip", "gatekeeper", "firewall"}
	homebrewFields = []string{"formulae", "casks"}
)

// ByteDelta is a changed storage size field.
type ByteDelta struct {
	Field     string  `json:"field"`
	Baseline  int64   `json:"baseline"`
	Current   int64   `json:"current"`
	Delta     int64   `json:"delta"`
	PctChange float64 `json:"pct_change"`
}

// CountDelta is a changed integer counter field.
type CountDelta struct {
	Field    string `json:"field"`
	Baseline int    `json:"baseline"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// FlagChange is a flipped boolean security config field.
type FlagChange struct {
	Field    string `json:"field"`
	Baseline bool   `json:"baseline"`
	Current  bool   `json:"current"`
}

// storageDelta compares storage byte fields. Fields missing on either side
// are skipped; only nonzero deltas are reported.
func storageDelta(base, curr ndjson.Row) []ByteDelta {
	if base == nil || curr == nil {
		return nil
	}
	var deltas []ByteDelta
	for _, f := range storageFields {
		b, okB := base[f]
		c, okC := curr[f]
		if !okB || !okC || b == nil || c == nil {
			continue
		}
		bv, cv := int64(ndjson.Float(b)), int64(ndjson.Float(c))
		d := cv - bv
		if d == 0 {
			continue
		}
		pct := 0.0
		if bv != 0 {
			pct = float64(d) / float64(bv) * 100
		}
		deltas = append(deltas, ByteDelta{
			Field:     strings.TrimSuffix(f, "_bytes"),
			Baseline:  bv,
			Current:   cv,
			Delta:     d,
			PctChange: math.Round(pct*100) / 100,
		})
	}
	return deltas
}

// countDelta compares integer counter fields from a row pair.
func countDelta(base, curr ndjson.Row, fields []string) []CountDelta {
	if base == nil || curr == nil {
		return nil
	}
	var deltas []CountDelta
	for _, f := range fields {
		b, okB := base[f]
		c, okC := curr[f]
		if !okB || !okC || b == nil || c == nil {
			continue
		}
		bv, cv := ndjson.Int(b), ndjson.Int(c)
		if cv != bv {
			deltas = append(deltas, CountDelta{Field: f, Baseline: bv, Current: cv, Delta: cv - bv})
		}
	}
	return deltas
}

// securityDelta compares boolean security config flags.
func securityDelta(base, curr ndjson.Row) []FlagChange {
	if base == nil || curr == nil {
		return nil
	}
	var changes []FlagChange
	for _, f := range securityFields {
		b, okB := base[f]
		c, okC := curr[f]
		if !okB || !okC || b == nil || c == nil {
			continue
		}
		bv, cv := ndjson.Bool(b), ndjson.Bool(c)
		if bv != cv {
			changes = append(changes, FlagChange{Field: f, Baseline: bv, Current: cv})
		}
	}
	return changes
}

// newWarnings returns warning codes present in current but not baseline,
// sorted.
func newWarnings(baselineRows, currentRows []ndjson.Row) []string {
	baseCodes := ndjson.WarningCodes(baselineRows)
	var codes []string
	for c := range ndjson.WarningCodes(currentRows) {
		if _, ok := baseCodes[c]; !ok {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)
	return codes
}

// formatBytes renders a byte count for display (1.2G, 500.0M). Whole bytes
// carry no decimal.
func formatBytes(n int64) string {
	v := math.Abs(float64(n))
	for _, unit := range []string{"B", "K", "M", "G", "T"} {
		if v < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%d%s", int64(v), unit)
			}
			return fmt.Sprintf("%.1f%s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1fP", v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func signed(d int) string {
	return fmt.Sprintf("%+d", d)
}
