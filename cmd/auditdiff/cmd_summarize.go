package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"auditdiff/internal/runid"
	"auditdiff/internal/snapshot"
)

var summarizeRunID string

var summarizeCmd = &cobra.Command{
	Use:   "summarize <events.tsv>",
	Short: "Aggregate raw probe failure events into a snapshot row",
	Long: "Reads tab-separated probe failure events (probe_id, ts_ms, exit_code),\n" +
		"groups them per probe, and prints one probe_failures_summary NDJSON row.\n" +
		"Malformed event lines are skipped. Without --run-id or $RUN_ID the run\n" +
		"identifier is derived from the host, the current time, and the event bytes.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := summarizeRunID
		if runID == "" {
			runID = os.Getenv("RUN_ID")
		}
		return runSummarize(args[0], runID, cmd.OutOrStdout())
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeRunID, "run-id", "", "run identifier for the snapshot (defaults to $RUN_ID, then a derived identifier)")
}

func runSummarize(path, runID string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if runID == "" {
		runID = runid.New(runid.DigestEvents(data)).RunID
	}

	snap, err := snapshot.Aggregate(bytes.NewReader(data), runID)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
