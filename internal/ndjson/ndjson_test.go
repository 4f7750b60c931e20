package ndjson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"meta","run_id":"r1"}`,
		``,
		`   `,
		`{"type":"summary","home_bytes":1024}`,
	}, "\n")

	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "meta", rows[0]["type"])
	assert.Equal(t, float64(1024), rows[1]["home_bytes"])
}

func TestReadReportsLineNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "malformed JSON",
			input: "{\"type\":\"meta\"}\n\n{not json}",
			want:  "invalid JSON at line 3",
		},
		{
			name:  "non-object row",
			input: "{\"type\":\"meta\"}\n[1,2,3]",
			want:  "invalid JSON at line 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.ndjson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.ndjson")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"counts","git_repos":3}`+"\n"), 0o644))

	rows, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "counts", rows[0]["type"])
}

func TestGroupByTypeLastWins(t *testing.T) {
	rows := []Row{
		{"type": "summary", "home_bytes": float64(1)},
		{"type": "warning", "code": "slow_disk"},
		{"type": "summary", "home_bytes": float64(2)},
		{"no_type": true},
		{"type": ""},
	}

	byType := GroupByType(rows)
	require.Len(t, byType, 2)
	assert.Equal(t, float64(2), byType["summary"]["home_bytes"])
}

func TestWarningCodes(t *testing.T) {
	rows := []Row{
		{"type": "warning", "code": "slow_disk"},
		{"type": "warning", "code": "slow_disk"},
		{"type": "warning", "soft_failures": float64(3)},
		{"type": "summary", "code": "not_a_warning"},
	}

	codes := WarningCodes(rows)
	assert.Equal(t, map[string]struct{}{
		"slow_disk":     {},
		"soft_failures": {},
	}, codes)
}

func TestCoercions(t *testing.T) {
	assert.Equal(t, 5, Int(float64(5)))
	assert.Equal(t, 0, Int("5"))
	assert.Equal(t, 2.5, Float(2.5))
	assert.Equal(t, float64(0), Float(nil))
	assert.True(t, Bool(true))
	assert.True(t, Bool(float64(1)))
	assert.False(t, Bool(float64(0)))
	assert.False(t, Bool("yes"))
}
