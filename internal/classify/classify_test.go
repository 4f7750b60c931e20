package classify

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSeverity(t *testing.T) {
	rules := Default()
	tests := []struct {
		probe string
		want  Severity
	}{
		{"config.fdesetup_status", SeverityHigh},
		{"network.defaults_firewall_globalstate", SeverityHigh},
		// exact override beats the network.socketfilterfw_ prefix rule
		{"network.socketfilterfw_stealth", SeverityHigh},
		{"network.socketfilterfw_globalstate", SeverityHigh},
		{"identity.dscl_list_users", SeverityMedium},
		{"network.ifconfig_iface", SeverityMedium},
		{"execution.launchctl_list", SeverityMedium},
		{"execution.ps_aux", SeverityLow},
		{"persistence.crontab_list", SeverityMedium},
		{"storage.df_usage", SeverityLow},
		{"unknown.probe", SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.probe, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Severity(tt.probe))
		})
	}
}

func TestSeverityFirstMatchWins(t *testing.T) {
	// network.defaults_ appears before the broader network.* topic-style
	// rules; an artificial ruleset proves order decides.
	rs := Ruleset{
		severityRules: []PrefixRule{
			{"network.defaults_", string(SeverityHigh)},
			{"network.", string(SeverityLow)},
		},
	}
	assert.Equal(t, SeverityHigh, rs.Severity("network.defaults_firewall"))
	assert.Equal(t, SeverityLow, rs.Severity("network.ifconfig_iface"))
}

func TestTopic(t *testing.T) {
	rules := Default()
	tests := []struct {
		probe string
		want  string
	}{
		{"config.fdesetup_status", "Security"},
		{"network.ifconfig_iface", "Network"},
		{"identity.dscl_list_users", "Identity"},
		{"storage.df_usage", "Storage"},
		{"execution.ps_aux", "Execution"},
		{"persistence.crontab_list", "Persistence"},
		{"mystery.probe", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.probe, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Topic(tt.probe))
		})
	}
}

func TestRanks(t *testing.T) {
	assert.Equal(t, 0, SeverityRank(SeverityHigh))
	assert.Equal(t, 1, SeverityRank(SeverityMedium))
	assert.Equal(t, 2, SeverityRank(SeverityLow))
	assert.Equal(t, 3, SeverityRank(Severity("bogus")))

	assert.Equal(t, 0, TopicRank("Security"))
	assert.Equal(t, 6, TopicRank("Other"))
	assert.Equal(t, len(TopicOrder), TopicRank("Bogus"))
}

func TestExpectedState(t *testing.T) {
	rules := Default()
	tests := []struct {
		name  string
		probe string
		codes map[int]int
		want  State
	}{
		{"subset of expected", "config.fdesetup_status", map[int]int{1: 5}, StateExpected},
		{"all expected codes", "config.fdesetup_status", map[int]int{1: 3, 15: 2}, StateExpected},
		{"overlap short of subset", "config.fdesetup_status", map[int]int{1: 3, 255: 2}, StateMixed},
		{"no overlap", "config.fdesetup_status", map[int]int{2: 1}, StateUnexpected},
		{"probe without profile", "execution.ps_aux", map[int]int{1: 4}, StateUnexpected},
		{"empty observations", "config.fdesetup_status", map[int]int{}, StateUnexpected},
		{"zero counts are not observations", "config.fdesetup_status", map[int]int{1: 0}, StateUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.ExpectedState(tt.probe, tt.codes))
		})
	}
}

func TestExpectedStateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rules := Default()
	genHistogram := gen.MapOf(gen.IntRange(0, 255), gen.IntRange(1, 50))

	properties.Property("probes without a profile are always unexpected", prop.ForAll(
		func(codes map[int]int) bool {
			return rules.ExpectedState("no.such_probe", codes) == StateUnexpected
		},
		genHistogram,
	))

	properties.Property("subset of the profile is always expected", prop.ForAll(
		func(useOne, useFifteen bool) bool {
			codes := map[int]int{}
			if useOne {
				codes[1] = 2
			}
			if useFifteen {
				codes[15] = 1
			}
			state := rules.ExpectedState("config.fdesetup_status", codes)
			if !useOne && !useFifteen {
				return state == StateUnexpected
			}
			return state == StateExpected
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("adding an unexpected code never yields expected", prop.ForAll(
		func(codes map[int]int) bool {
			codes[200] = 1 // outside every default profile
			state := rules.ExpectedState("config.fdesetup_status", codes)
			return state == StateMixed || state == StateUnexpected
		},
		genHistogram,
	))

	properties.TestingRun(t)
}

func TestStateSuffix(t *testing.T) {
	assert.Equal(t, " (expected)", StateExpected.Suffix())
	assert.Equal(t, " (mixed)", StateMixed.Suffix())
	assert.Equal(t, "", StateUnexpected.Suffix())
}

func TestExpectedCodes(t *testing.T) {
	rules := Default()
	assert.Equal(t, []int{1, 15}, rules.ExpectedCodes("config.fdesetup_status"))
	assert.Equal(t, []int{1, 70}, rules.ExpectedCodes("identity.dscl_list_users"))
	assert.Empty(t, rules.ExpectedCodes("execution.ps_aux"))
}
