package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"auditdiff/internal/ndjson"
	"auditdiff/internal/runid"
	"auditdiff/internal/store"
)

var runsOpts struct {
	dir   string
	runID string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the archive of audit runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunsList(runsStore(), cmd.OutOrStdout())
	},
}

var runsAddCmd = &cobra.Command{
	Use:   "add <audit.ndjson>",
	Short: "Archive an audit NDJSON file under a run identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRunsAdd(runsStore(), args[0], runsOpts.runID, cmd.OutOrStdout())
	},
}

var runsRemoveCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Remove an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsStore().Delete(args[0])
	},
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsOpts.dir, "runs-dir", "", "archive directory (defaults to $AUDITDIFF_RUNS_DIR, then ~/.auditdiff/runs)")
	runsAddCmd.Flags().StringVar(&runsOpts.runID, "run-id", "", "identifier to archive under (defaults to one derived from the file)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsAddCmd)
	runsCmd.AddCommand(runsRemoveCmd)
}

func runsStore() *store.Store {
	dir := runsOpts.dir
	if dir == "" {
		dir = store.ResolveDir(os.Environ())
	}
	return store.NewStore(dir)
}

func runRunsList(st *store.Store, out io.Writer) error {
	summaries, err := st.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No archived runs.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s\t%d bytes\t%s\n", s.RunID, s.Size, s.Modified.UTC().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunsAdd(st *store.Store, path, runID string, out io.Writer) error {
	rows, err := ndjson.ReadFile(path)
	if err != nil {
		return err
	}
	if runID == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		runID = runid.New(runid.DigestEvents(data)).RunID
	}
	if err := st.Save(runID, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "Archived %s as %s\n", path, runID)
	return nil
}
