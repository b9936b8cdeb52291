package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobscout-backend/lib/serviceutil"
)

var runsLimit *int

func init() {
	runsLimit = runsCmd.Flags().Int("limit", 0, "Maximum rows to show, 0 means the default.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Lists recent scrape runs from the history log.",
	Run: func(cmd *cobra.Command, args []string) {
		st := openStores()
		defer st.Close()

		runs, err := st.history.Recent(cmd.Context(), *runsLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Kind", "Query", "Jobs", "Status", "Started", "Error"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				run.Kind,
				truncate(run.Query, 32),
				run.JobCount,
				run.Status,
				formatUnix(run.StartedAt),
				truncate(run.Error, 40),
			})
		}
		t.Render()
	},
}
