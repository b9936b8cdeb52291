package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobscout-backend/lib/scrapers/upwork"
)

var searchFlags struct {
	category      *string
	experience    *[]string
	jobType       *string
	budgetMin     *int
	budgetMax     *int
	hourlyMin     *int
	hourlyMax     *int
	clientHires   *string
	hoursPerWeek  *string
	projectLength *string
	sortBy        *string
	max           *int
	enrich        *bool
}

func init() {
	f := searchCmd.Flags()
	searchFlags.category = f.String("category", "", "Category name, e.g. \"Web, Mobile & Software Dev\".")
	searchFlags.experience = f.StringSlice("experience", nil, "Experience tiers: entry, intermediate, expert.")
	searchFlags.jobType = f.String("job-type", "", "Job type: hourly or fixed.")
	searchFlags.budgetMin = f.Int("budget-min", 0, "Minimum fixed budget in dollars.")
	searchFlags.budgetMax = f.Int("budget-max", 0, "Maximum fixed budget in dollars.")
	searchFlags.hourlyMin = f.Int("hourly-min", 0, "Minimum hourly rate in dollars.")
	searchFlags.hourlyMax = f.Int("hourly-max", 0, "Maximum hourly rate in dollars.")
	searchFlags.clientHires = f.String("client-hires", "", "Client hire history bucket, e.g. \"1-9\".")
	searchFlags.hoursPerWeek = f.String("hours-per-week", "", "Workload: less_than_30 or more_than_30.")
	searchFlags.projectLength = f.String("project-length", "", "Project length: week, month, semester or ongoing.")
	searchFlags.sortBy = f.String("sort", "", "Sort order: relevance, recency, client_rating, client_spending.")
	searchFlags.max = f.Int("max", 0, "Maximum number of jobs to keep, 0 means all.")
	searchFlags.enrich = f.Bool("enrich", false, "Follow each tile to its detail page.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Runs a filtered job search and caches the results.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params := upwork.SearchParams{
			Query:            strings.Join(args, " "),
			Category:         *searchFlags.category,
			ExperienceLevels: *searchFlags.experience,
			JobType:          *searchFlags.jobType,
			BudgetMin:        *searchFlags.budgetMin,
			BudgetMax:        *searchFlags.budgetMax,
			HourlyRateMin:    *searchFlags.hourlyMin,
			HourlyRateMax:    *searchFlags.hourlyMax,
			ClientHires:      *searchFlags.clientHires,
			HoursPerWeek:     *searchFlags.hoursPerWeek,
			ProjectLength:    *searchFlags.projectLength,
			SortBy:           *searchFlags.sortBy,
			MaxResults:       *searchFlags.max,
		}

		cfg := readConfig()
		cfg.Headless = true
		if *searchFlags.enrich {
			cfg.EnrichDetails = true
		}

		service, cleanup := openService(cfg)
		defer cleanup()
		startForScraping(cmd, service)

		t1 := time.Now()
		report, err := service.Search(cmd.Context(), params)
		if err != nil {
			reportScrapeError(err)
		}
		renderListingReport(report, time.Since(t1))
	},
}
