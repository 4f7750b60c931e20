package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"auditdiff/internal/classify"
	"auditdiff/internal/delta"
	"auditdiff/internal/ndjson"
	"auditdiff/internal/store"
)

var diffOpts struct {
	baseline  string
	current   string
	ndjsonOut bool
	rulesPath string
	runsDir   string
}

var diffCmd = &cobra.Command{
	Use:   "diff --baseline <path|run-id> --current <path|run-id>",
	Short: "Diff two audit NDJSON files and report what changed",
	Long: "Compares a baseline and a current audit run. Probe failures are matched\n" +
		"on a stable fingerprint that ignores timing noise; flat sections (storage,\n" +
		"counters, security flags) are compared field by field.\n\n" +
		"Each side is a file path, an archived run identifier, or \"latest\" for the\n" +
		"most recently archived run.\n\n" +
		"Exits 0 when nothing changed, 2 when changes were found, 1 on fatal input errors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		runsDir := diffOpts.runsDir
		if runsDir == "" {
			runsDir = store.ResolveDir(os.Environ())
		}
		changed, err := runDiff(diffOpts.baseline, diffOpts.current, diffOpts.rulesPath, runsDir, diffOpts.ndjsonOut, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if changed {
			return &exitCodeError{code: 2}
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffOpts.baseline, "baseline", "", "baseline NDJSON file, archived run identifier, or \"latest\"")
	diffCmd.Flags().StringVar(&diffOpts.current, "current", "", "current NDJSON file, archived run identifier, or \"latest\"")
	diffCmd.Flags().BoolVar(&diffOpts.ndjsonOut, "ndjson", false, "emit structured diff rows as NDJSON instead of a human-readable report")
	diffCmd.Flags().StringVar(&diffOpts.rulesPath, "rules", "", "YAML file replacing the built-in classification tables")
	diffCmd.Flags().StringVar(&diffOpts.runsDir, "runs-dir", "", "archive directory for run identifiers (defaults to $AUDITDIFF_RUNS_DIR, then ~/.auditdiff/runs)")
	_ = diffCmd.MarkFlagRequired("baseline")
	_ = diffCmd.MarkFlagRequired("current")
}

// resolveRows loads one side of the diff. A path that exists on disk wins;
// otherwise the value is treated as an archived run identifier.
func resolveRows(value string, st *store.Store) ([]ndjson.Row, error) {
	if value == "latest" {
		runID, err := st.Latest()
		if err != nil {
			return nil, fmt.Errorf("resolve latest run: %w", err)
		}
		return st.Load(runID)
	}
	if _, err := os.Stat(value); err == nil {
		return ndjson.ReadFile(value)
	}
	if st.Exists(value) {
		return st.Load(value)
	}
	return nil, fmt.Errorf("%s: no such file or archived run", value)
}

func runDiff(baseline, current, rulesPath, runsDir string, ndjsonMode bool, out io.Writer) (bool, error) {
	rules := classify.Default()
	if rulesPath != "" {
		var err error
		rules, err = classify.LoadRules(rulesPath)
		if err != nil {
			return false, err
		}
	}

	st := store.NewStore(runsDir)
	baselineRows, err := resolveRows(baseline, st)
	if err != nil {
		return false, err
	}
	currentRows, err := resolveRows(current, st)
	if err != nil {
		return false, err
	}

	report, err := delta.Build(baselineRows, currentRows, rules)
	if err != nil {
		return false, err
	}

	if ndjsonMode {
		rows, err := report.NDJSON()
		if err != nil {
			return false, fmt.Errorf("encode diff rows: %w", err)
		}
		fmt.Fprint(out, rows)
	} else {
		fmt.Fprint(out, report.Text())
	}
	return report.HasChanges(), nil
}
