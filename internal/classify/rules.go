package classify

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML document structure for a replacement rule set.
// Prefix rules are YAML sequences so their first-match order survives
// serialization; maps would not guarantee that.
type rulesFile struct {
	Severity          []severityEntry  `yaml:"severity"`
	SeverityOverrides map[string]string `yaml:"severity_overrides,omitempty"`
	Topics            []topicEntry     `yaml:"topics"`
	ExpectedExitCodes map[string][]int `yaml:"expected_exit_codes,omitempty"`
}

type severityEntry struct {
	Prefix string `yaml:"prefix"`
	Level  string `yaml:"level"`
}

type topicEntry struct {
	Prefix string `yaml:"prefix"`
	Topic  string `yaml:"topic"`
}

var validLevels = map[string]struct{}{
	string(SeverityHigh):   {},
	string(SeverityMedium): {},
	string(SeverityLow):    {},
}

// ParseRules parses a YAML rules document into a Ruleset.
func ParseRules(content []byte) (Ruleset, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(content, &rf); err != nil {
		return Ruleset{}, fmt.Errorf("invalid YAML: %w", err)
	}

	rs := Ruleset{
		severityOverrides: make(map[string]Severity, len(rf.SeverityOverrides)),
		expectedCodes:     make(map[string]map[int]struct{}, len(rf.ExpectedExitCodes)),
	}

	for i, e := range rf.Severity {
		if e.Prefix == "" {
			return Ruleset{}, fmt.Errorf("severity rule %d: missing prefix", i)
		}
		if _, ok := validLevels[e.Level]; !ok {
			return Ruleset{}, fmt.Errorf("severity rule %d (%q): unknown level %q", i, e.Prefix, e.Level)
		}
		rs.severityRules = append(rs.severityRules, PrefixRule{Prefix: e.Prefix, Value: e.Level})
	}

	for probe, level := range rf.SeverityOverrides {
		if _, ok := validLevels[level]; !ok {
			return Ruleset{}, fmt.Errorf("severity override %q: unknown level %q", probe, level)
		}
		rs.severityOverrides[probe] = Severity(level)
	}

	for i, e := range rf.Topics {
		if e.Prefix == "" {
			return Ruleset{}, fmt.Errorf("topic rule %d: missing prefix", i)
		}
		if e.Topic == "" {
			return Ruleset{}, fmt.Errorf("topic rule %d (%q): missing topic", i, e.Prefix)
		}
		rs.topicRules = append(rs.topicRules, PrefixRule{Prefix: e.Prefix, Value: e.Topic})
	}

	for probe, codes := range rf.ExpectedExitCodes {
		set := make(map[int]struct{}, len(codes))
		for _, c := range codes {
			set[c] = struct{}{}
		}
		rs.expectedCodes[probe] = set
	}

	return rs, nil
}

// LoadRules reads and parses a rules file. The result replaces the built-in
// tables wholesale; there is no merging and no reload path.
func LoadRules(path string) (Ruleset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read rules: %w", err)
	}
	rs, err := ParseRules(content)
	if err != nil {
		return Ruleset{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rs, nil
}

// ToYAML serializes a Ruleset back to a YAML rules document.
func (rs Ruleset) ToYAML() ([]byte, error) {
	rf := rulesFile{
		SeverityOverrides: make(map[string]string, len(rs.severityOverrides)),
		ExpectedExitCodes: make(map[string][]int, len(rs.expectedCodes)),
	}
	for _, r := range rs.severityRules {
		rf.Severity = append(rf.Severity, severityEntry{Prefix: r.Prefix, Level: r.Value})
	}
	for probe, sev := range rs.severityOverrides {
		rf.SeverityOverrides[probe] = string(sev)
	}
	for _, r := range rs.topicRules {
		rf.Topics = append(rf.Topics, topicEntry{Prefix: r.Prefix, Topic: r.Value})
	}
	for probe, set := range rs.expectedCodes {
		codes := make([]int, 0, len(set))
		for c := range set {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		rf.ExpectedExitCodes[probe] = codes
	}
	return yaml.Marshal(&rf)
}
