package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobscout-backend/lib/serviceutil"
	"jobscout-backend/services/jobstore"
)

var cacheListFlags struct {
	source     *string
	skills     *[]string
	minBudget  *float64
	experience *string
	within     *time.Duration
	limit      *int
}

func init() {
	f := cacheListCmd.Flags()
	cacheListFlags.source = f.String("source", "", "Only records from this source: best_matches, search or detail.")
	cacheListFlags.skills = f.StringSlice("skill", nil, "Only records matching these skills (fuzzy).")
	cacheListFlags.minBudget = f.Float64("min-budget", 0, "Only records with at least this budget or hourly rate.")
	cacheListFlags.experience = f.String("experience", "", "Only records with this experience tier.")
	cacheListFlags.within = f.Duration("within", 0, "Only records fetched within this duration, e.g. 24h.")
	cacheListFlags.limit = f.Int("limit", 0, "Maximum rows to show, 0 means the default.")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects cached job records without touching the network.",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists cached job records, optionally filtered.",
	Run: func(cmd *cobra.Command, args []string) {
		st := openStores()
		defer st.Close()

		records, err := st.store.List(cmd.Context(), jobstore.Filter{
			Source:        *cacheListFlags.source,
			Skills:        *cacheListFlags.skills,
			MinBudget:     *cacheListFlags.minBudget,
			Experience:    jobstore.ParseExperienceLevel(*cacheListFlags.experience),
			FetchedWithin: *cacheListFlags.within,
			Limit:         *cacheListFlags.limit,
		})
		if err != nil {
			serviceutil.Fatal("failed to list cached records", err)
		}
		renderRecords(records)
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Prints a single cached record with its description and provenance.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := openStores()
		defer st.Close()

		record, err := st.store.Get(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to load record", err)
		}
		renderRecords([]*jobstore.JobRecord{record})

		t := newTable()
		t.AppendHeader(table.Row{"Field", "Strategy", "Observed"})
		t.SortBy([]table.SortBy{{Name: "Field", Mode: table.Asc}})
		for field, origin := range record.Provenance {
			t.AppendRow(table.Row{
				string(field),
				origin.Strategy.String(),
				origin.ObservedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		t.Render()

		if record.Description != "" {
			fmt.Printf("\n%s\n", record.Description)
		}
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarizes the cache: totals, completeness and top skills.",
	Run: func(cmd *cobra.Command, args []string) {
		st := openStores()
		defer st.Close()

		stats, err := st.store.Stats(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to compute cache stats", err)
		}

		fmt.Printf("records: %d\n", stats.TotalRecords)
		fmt.Printf("average budget: $%.2f\n", stats.AvgBudget)
		if !stats.LastFetchedAt.IsZero() {
			fmt.Printf("last fetched: %s\n", stats.LastFetchedAt.Local().Format("2006-01-02 15:04:05"))
		}

		t := newTable()
		t.AppendHeader(table.Row{"Field", "Present"})
		t.SortBy([]table.SortBy{{Name: "Field", Mode: table.Asc}})
		for field, count := range stats.FieldCompleteness {
			t.AppendRow(table.Row{string(field), count})
		}
		t.Render()

		if len(stats.TopSkills) > 0 {
			t = newTable()
			t.AppendHeader(table.Row{"Skill", "Jobs"})
			for _, s := range stats.TopSkills {
				t.AppendRow(table.Row{s.Skill, s.Count})
			}
			t.Render()
		}

		if len(stats.ExperienceBreakdown) > 0 {
			t = newTable()
			t.AppendHeader(table.Row{"Experience", "Jobs"})
			t.SortBy([]table.SortBy{{Name: "Experience", Mode: table.Asc}})
			for level, count := range stats.ExperienceBreakdown {
				t.AppendRow(table.Row{string(level), count})
			}
			t.Render()
		}
	},
}
