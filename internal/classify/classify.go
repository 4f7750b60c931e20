// Package classify maps probe identifiers to severity, topic, and an
// expected exit-code profile using static, ordered rule tables.
package classify

import (
	"sort"
	"strings"
)

// Severity is a probe's importance tier for report ordering.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// State is the tri-state judgment of observed exit codes against a probe's
// expected-failure profile.
type State string

const (
	StateExpected   State = "expected"
	StateMixed      State = "mixed"
	StateUnexpected State = "unexpected"
)

// Suffix returns the display suffix for a state: " (expected)", " (mixed)",
// or nothing for unexpected.
func (s State) Suffix() string {
	switch s {
	case StateExpected:
		return " (expected)"
	case StateMixed:
		return " (mixed)"
	default:
		return ""
	}
}

// TopicOrder is the fixed display order for report grouping, independent of
// classification order.
var TopicOrder = []string{"Security", "Network", "Identity", "Storage", "Execution", "Persistence", "Other"}

// severityRank maps severity to sort priority (lower sorts first).
var severityRank = map[Severity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

// SeverityRank returns the sort priority for a severity. Unknown severities
// sort last.
func SeverityRank(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// TopicRank returns the display priority for a topic. Unknown topics sort last.
func TopicRank(topic string) int {
	for i, t := range TopicOrder {
		if t == topic {
			return i
		}
	}
	return len(TopicOrder)
}

// PrefixRule maps a probe identifier prefix to a classification value.
// Rules are consulted in slice order with first-match-wins semantics, so the
// slice order is part of the contract, not an implementation detail.
type PrefixRule struct {
	Prefix string
	Value  string
}

// Ruleset holds the complete classification tables. Loaded once and treated
// as immutable; safe for concurrent readers.
type Ruleset struct {
	severityRules     []PrefixRule
	severityOverrides map[string]Severity
	topicRules        []PrefixRule
	expectedCodes     map[string]map[int]struct{}
}

// Default returns the built-in classification tables.
// config.* and firewall probes are security-critical; identity and network
// inspection probes are load-bearing; process listings are noise-tolerant.
func Default() Ruleset {
	return Ruleset{
		severityRules: []PrefixRule{
			{"config.", string(SeverityHigh)},
			{"network.defaults_", string(SeverityHigh)},
			{"network.socketfilterfw_", string(SeverityHigh)},
			{"identity.dscl_", string(SeverityMedium)},
			{"identity.dseditgroup_", string(SeverityMedium)},
			{"network.ifconfig_", string(SeverityMedium)},
			{"network.lsof_", string(SeverityMedium)},
			{"network.scutil_", string(SeverityMedium)},
			{"execution.launchctl_", string(SeverityMedium)},
			{"execution.ps_", string(SeverityLow)},
			{"persistence.", string(SeverityMedium)},
		},
		severityOverrides: map[string]Severity{
			"network.socketfilterfw_stealth": SeverityHigh,
		},
		topicRules: []PrefixRule{
			{"config.", "Security"},
			{"network.", "Network"},
			{"identity.", "Identity"},
			{"storage.", "Storage"},
			{"execution.", "Execution"},
			{"persistence.", "Persistence"},
		},
		// Probes that commonly fail with these codes in non-interactive
		// contexts (permission boundaries, TCC prompts).
		expectedCodes: map[string]map[int]struct{}{
			"config.fdesetup_status":                {15: {}, 1: {}},
			"config.defaults_firewall_globalstate":  {1: {}},
			"config.defaults_screen_lock_delay":     {1: {}},
			"network.defaults_firewall_globalstate": {1: {}},
			"identity.dscl_list_users":              {70: {}, 1: {}},
			"identity.dseditgroup_checkmember":      {1: {}},
		},
	}
}

// Severity returns the severity for a probe. Exact overrides win; otherwise
// the first matching prefix rule applies; unmatched probes are low.
func (rs Ruleset) Severity(probe string) Severity {
	if sev, ok := rs.severityOverrides[probe]; ok {
		return sev
	}
	for _, r := range rs.severityRules {
		if strings.HasPrefix(probe, r.Prefix) {
			return Severity(r.Value)
		}
	}
	return SeverityLow
}

// Topic returns the report grouping for a probe, "Other" when no prefix
// rule matches.
func (rs Ruleset) Topic(probe string) string {
	for _, r := range rs.topicRules {
		if strings.HasPrefix(probe, r.Prefix) {
			return r.Value
		}
	}
	return "Other"
}

// ExpectedCodes returns the probe's expected exit codes in ascending order.
// Probes absent from the table have an empty profile.
func (rs Ruleset) ExpectedCodes(probe string) []int {
	expected := rs.expectedCodes[probe]
	codes := make([]int, 0, len(expected))
	for c := range expected {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// ExpectedState judges observed exit codes against the probe's profile.
// A subset of the expected codes is Expected outright; any overlap short of
// a subset is Mixed, so a new code among expected noise stays visible; no
// profile, no observations, or no overlap is Unexpected.
func (rs Ruleset) ExpectedState(probe string, exitCodes map[int]int) State {
	expected := rs.expectedCodes[probe]
	if len(expected) == 0 {
		return StateUnexpected
	}

	observed := make(map[int]struct{}, len(exitCodes))
	for c, n := range exitCodes {
		if n != 0 {
			observed[c] = struct{}{}
		}
	}
	if len(observed) == 0 {
		return StateUnexpected
	}

	allExpected := true
	overlap := false
	for c := range observed {
		if _, ok := expected[c]; ok {
			overlap = true
		} else {
			allExpected = false
		}
	}
	switch {
	case allExpected:
		return StateExpected
	case overlap:
		return StateMixed
	default:
		return StateUnexpected
	}
}
