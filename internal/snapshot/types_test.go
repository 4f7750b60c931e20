package snapshot

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditdiff/internal/ndjson"
)

func TestHistogramUnmarshalCoercesKeys(t *testing.T) {
	var h Histogram
	require.NoError(t, json.Unmarshal([]byte(`{"1":5,"255":2,"junk":9}`), &h))
	assert.Equal(t, Histogram{1: 5, 255: 2}, h)
}

func TestHistogramEqualRepresentationIndependent(t *testing.T) {
	var decoded Histogram
	require.NoError(t, json.Unmarshal([]byte(`{"1":5}`), &decoded))
	assert.True(t, decoded.Equal(Histogram{1: 5}))
	assert.False(t, decoded.Equal(Histogram{1: 4}))
	assert.False(t, decoded.Equal(Histogram{1: 5, 2: 1}))
}

func TestHistogramMarshalSortsNumerically(t *testing.T) {
	data, err := json.Marshal(Histogram{15: 1, 1: 3, 255: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"1":3,"15":1,"255":2}`, string(data))
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Snapshot{
		RunID: "run-7",
		Items: map[string]Stat{
			"config.sip_status": {
				Probe: "config.sip_status", Count: 3,
				FirstTSMs: 1000, LastTSMs: 4000, DurationMS: 3000,
				FailureRate: 1.0, ExitCodes: Histogram{1: 3},
			},
			"network.lsof_listen": {
				Probe: "network.lsof_listen", Count: 1,
				FirstTSMs: 2000, LastTSMs: 2000,
				FailureRate: 1.0, ExitCodes: Histogram{255: 1},
			},
		},
	}

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"probe_failures_summary"`)
	// items sorted by probe: config before network
	assert.Less(t,
		strings.Index(string(data), "config.sip_status"),
		strings.Index(string(data), "network.lsof_listen"))

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(snap, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRow(t *testing.T) {
	row := ndjson.Row{
		"type":   RowType,
		"run_id": "base",
		"items": []any{
			map[string]any{
				"probe":        "identity.dscl_list_users",
				"count":        float64(2),
				"first_ts_ms":  float64(1000),
				"last_ts_ms":   float64(1500),
				"duration_ms":  float64(500),
				"failure_rate": 2.0,
				"exit_codes":   map[string]any{"70": float64(1), "1": float64(1)},
			},
			map[string]any{"probe": "", "count": float64(9)},
		},
	}

	snap, err := FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, "base", snap.RunID)
	require.Len(t, snap.Items, 1)
	st := snap.Items["identity.dscl_list_users"]
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, Histogram{70: 1, 1: 1}, st.ExitCodes)
}

func TestFromRowInvalid(t *testing.T) {
	_, err := FromRow(ndjson.Row{"type": RowType, "items": "not a list"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid probe_failures_summary row")
}
