package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/scrapers/upwork"
	"jobscout-backend/lib/serviceutil"
	"jobscout-backend/services/jobstore"
	"jobscout-backend/services/scrape"
)

var fetchMax *int
var fetchEnrich *bool

func init() {
	fetchMax = fetchCmd.PersistentFlags().Int("max", 0, "Maximum number of jobs to keep, 0 means all.")
	fetchEnrich = fetchCmd.PersistentFlags().Bool("enrich", false, "Follow each tile to its detail page.")
	fetchCmd.AddCommand(fetchListingCmd)
	fetchCmd.AddCommand(fetchDetailCmd)
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrapes listing or detail pages into the cache.",
}

// startForScraping brings the session to Active or exits with a
// message pointing at `session start`.
func startForScraping(cmd *cobra.Command, service *scrape.Service) {
	err := service.StartSession(cmd.Context())
	if err != nil {
		serviceutil.Fatal("failed to start session", err)
	}
	if service.SessionPhase() != browser.PhaseActive {
		serviceutil.Fatal(
			"session is not logged in",
			fmt.Errorf("phase %s, run `jobscout-cli session start` first", service.SessionPhase()),
		)
	}
}

func reportScrapeError(err error) {
	var authErr *browser.AuthRequiredError
	var blocked *browser.BlockedError
	switch {
	case errors.As(err, &authErr):
		serviceutil.Fatal("session expired, run `jobscout-cli session start`", err)
	case errors.As(err, &blocked):
		serviceutil.Fatal("blocked by a challenge, run `jobscout-cli session confirm`", err)
	default:
		serviceutil.Fatal("scrape failed", err)
	}
}

func renderListingReport(report scrape.ListingReport, elapsed time.Duration) {
	renderRecords(report.Records)
	slog.Info("listing scraped",
		"jobs", len(report.Records),
		"skipped", report.Skipped,
		"enriched", report.Enriched,
		"run_id", report.RunID,
		"seconds", elapsed.Seconds())
	if len(report.Records) == 0 && len(report.ObservedMarkers) > 0 {
		slog.Warn("no tiles matched, page markup may have changed",
			"observed_markers", report.ObservedMarkers)
	}
}

var fetchListingCmd = &cobra.Command{
	Use:   "listing [url]",
	Short: "Scrapes a listing page (best matches by default) into the cache.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		listURL := upwork.BestMatchesURL
		if len(args) > 0 {
			listURL = args[0]
		}

		cfg := readConfig()
		cfg.Headless = true
		if *fetchEnrich {
			cfg.EnrichDetails = true
		}

		service, cleanup := openService(cfg)
		defer cleanup()
		startForScraping(cmd, service)

		t1 := time.Now()
		report, err := service.FetchListing(cmd.Context(), listURL, *fetchMax)
		if err != nil {
			reportScrapeError(err)
		}
		renderListingReport(report, time.Since(t1))
	},
}

var fetchDetailCmd = &cobra.Command{
	Use:   "detail <url-or-id>",
	Short: "Scrapes a single job detail page into the cache.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobURL := args[0]
		if id := upwork.JobIDFromURL(jobURL); id == jobURL {
			// a bare ~id was given rather than a url
			jobURL = upwork.DetailURL(id)
		}

		cfg := readConfig()
		cfg.Headless = true

		service, cleanup := openService(cfg)
		defer cleanup()
		startForScraping(cmd, service)

		record, err := service.FetchDetail(cmd.Context(), jobURL)
		if err != nil {
			reportScrapeError(err)
		}
		renderRecords([]*jobstore.JobRecord{record})
		fmt.Printf("\n%s\n", record.Description)
	},
}
