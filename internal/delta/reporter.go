package delta

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"auditdiff/internal/classify"
	"auditdiff/internal/snapshot"
)

const (
	spanSingleShot = "single-shot"
	spanTightBurst = "tight burst"
)

// SpanLabel classifies how a probe's failures spread over time:
// "single-shot" for one failure, "tight burst" for repeats with no measurable
// duration, "span" otherwise.
func SpanLabel(count int, durationMS int64) string {
	if count == 1 {
		return spanSingleShot
	}
	if durationMS == 0 {
		return spanTightBurst
	}
	return "span"
}

// FormatSpan renders the span/rate display for a stat. The rate suffix only
// appears when the duration reaches a full second and the rate is positive,
// so a sub-second burst never renders a misleading (0.0/s).
func FormatSpan(st snapshot.Stat) string {
	switch SpanLabel(st.Count, st.DurationMS) {
	case spanSingleShot:
		return spanSingleShot
	case spanTightBurst:
		return spanTightBurst
	}
	span := fmt.Sprintf("%s → %s", formatTSMs(st.FirstTSMs), formatTSMs(st.LastTSMs))
	if float64(st.DurationMS)/1000 >= 1 && st.FailureRate > 0 {
		return fmt.Sprintf("%s (%.2f/s)", span, st.FailureRate)
	}
	return span
}

func formatTSMs(ms int64) string {
	if ms == 0 {
		return "N/A"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

// formatHistogram renders "code:count" pairs sorted by numeric code.
func formatHistogram(h snapshot.Histogram) string {
	parts := make([]string, 0, len(h))
	for _, c := range h.Codes() {
		parts = append(parts, fmt.Sprintf("%d:%d", c, h[c]))
	}
	return strings.Join(parts, ",")
}

// formatCodesDelta renders signed "code:+n" pairs sorted by numeric code.
func formatCodesDelta(delta map[int]int) string {
	codes := make([]int, 0, len(delta))
	for c := range delta {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, fmt.Sprintf("%d:%+d", c, delta[c]))
	}
	return strings.Join(parts, ", ")
}

func formatEntry(e Entry) string {
	switch e.Status {
	case StatusNew:
		st := *e.Current
		return fmt.Sprintf("  + %s failed %d× (%s), exit_codes: {%s}%s",
			e.Probe, st.Count, FormatSpan(st), formatHistogram(st.ExitCodes), e.ExpectedState.Suffix())
	case StatusResolved:
		st := *e.Baseline
		return fmt.Sprintf("  - %s resolved (was %d×, exit_codes: {%s})%s",
			e.Probe, st.Count, formatHistogram(st.ExitCodes), e.ExpectedState.Suffix())
	default:
		deltaStr := formatCodesDelta(e.ExitCodesDelta)
		if deltaStr != "" {
			return fmt.Sprintf("  ~ %s %d×→%d×, exit_codes: %s%s",
				e.Probe, e.Baseline.Count, e.Current.Count, deltaStr, e.ExpectedState.Suffix())
		}
		return fmt.Sprintf("  ~ %s %d×→%d×%s",
			e.Probe, e.Baseline.Count, e.Current.Count, e.ExpectedState.Suffix())
	}
}

// FormatEntriesText renders the probe-failure section: entries bucketed by
// topic in the fixed display order, detector order preserved within a topic.
func FormatEntriesText(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString("## Probe failures delta\n")
	if len(entries) == 0 {
		sb.WriteString("  No changes detected\n\n")
		return sb.String()
	}

	byTopic := make(map[string][]Entry)
	for _, e := range entries {
		byTopic[e.Topic] = append(byTopic[e.Topic], e)
	}
	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		ri, rj := classify.TopicRank(topics[i]), classify.TopicRank(topics[j])
		if ri != rj {
			return ri < rj
		}
		return topics[i] < topics[j]
	})

	for _, topic := range topics {
		fmt.Fprintf(&sb, "\n### %s\n", topic)
		for _, e := range byTopic[topic] {
			sb.WriteString(formatEntry(e))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// entryRow is the structured-mode rendering of one Entry.
type entryRow struct {
	Type           string            `json:"type"`
	DiffType       string            `json:"diff_type"`
	Probe          string            `json:"probe"`
	Status         Status            `json:"status"`
	Severity       classify.Severity `json:"severity"`
	Topic          string            `json:"topic"`
	Expected       []int             `json:"expected"`
	ExpectedState  classify.State    `json:"expected_state"`
	Baseline       *snapshot.Stat    `json:"baseline,omitempty"`
	Current        *snapshot.Stat    `json:"current,omitempty"`
	ExitCodesDelta map[string]int    `json:"exit_codes_delta,omitempty"`
}

// MarshalEntry renders one diff entry as its structured NDJSON row.
func MarshalEntry(e Entry) ([]byte, error) {
	row := entryRow{
		Type:          "diff",
		DiffType:      "probe_failure",
		Probe:         e.Probe,
		Status:        e.Status,
		Severity:      e.Severity,
		Topic:         e.Topic,
		Expected:      e.Expected,
		ExpectedState: e.ExpectedState,
		Baseline:      e.Baseline,
		Current:       e.Current,
	}
	if len(e.ExitCodesDelta) > 0 {
		row.ExitCodesDelta = make(map[string]int, len(e.ExitCodesDelta))
		for c, d := range e.ExitCodesDelta {
			row.ExitCodesDelta[fmt.Sprintf("%d", c)] = d
		}
	}
	return json.Marshal(row)
}
