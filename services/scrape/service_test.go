package scrape

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/scrapers/upwork"
	"jobscout-backend/lib/telemetry"
	"jobscout-backend/services/history"
	historydb "jobscout-backend/services/history/db"
	"jobscout-backend/services/jobstore"

	_ "modernc.org/sqlite"
)

const (
	testHomeURL  = "https://www.upwork.com/nx/find-work/"
	loggedInPage = `<html><body><nav data-test="nav-user">me</nav></body></html>`
)

type fakeSurface struct {
	pages      map[string]string
	currentURL string
	heights    []int
	heightIdx  int
	// gotoFailures[url] errors that many navigations before succeeding
	gotoFailures map[string]int
	gotoCalls    int
}

func (f *fakeSurface) Launch(ctx context.Context, opts browser.LaunchOptions) error { return nil }

func (f *fakeSurface) Goto(ctx context.Context, url string, timeout time.Duration) error {
	f.gotoCalls++
	if f.gotoFailures[url] > 0 {
		f.gotoFailures[url]--
		return fmt.Errorf("net::ERR_TIMED_OUT at %s", url)
	}
	f.currentURL = url
	return nil
}

func (f *fakeSurface) CurrentURL() string { return f.currentURL }

func (f *fakeSurface) Content(ctx context.Context) (string, error) {
	content, ok := f.pages[f.currentURL]
	if !ok {
		return "", fmt.Errorf("no document for %s", f.currentURL)
	}
	return content, nil
}

func (f *fakeSurface) Evaluate(ctx context.Context, script string) (any, error) {
	if script == "document.body.scrollHeight" {
		if len(f.heights) == 0 {
			return 1000, nil
		}
		h := f.heights[f.heightIdx]
		if f.heightIdx < len(f.heights)-1 {
			f.heightIdx++
		}
		return h, nil
	}
	return nil, nil
}

func (f *fakeSurface) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return []browser.Cookie{{Name: "session", Value: "tok"}}, nil
}

func (f *fakeSurface) UserAgent(ctx context.Context) (string, error) { return "test-agent", nil }

func (f *fakeSurface) Close(ctx context.Context) error { return nil }

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	f.calls++
	content, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("fetch failed for %s", url)
	}
	return content, nil
}

func listingFixture(t *testing.T) string {
	raw, err := os.ReadFile("../../lib/scrapers/upwork/testdata/listing_best_matches.html")
	require.NoError(t, err)
	return string(raw)
}

func setup(t *testing.T, surface *fakeSurface, opts Options) (*Service, *jobstore.Store, func()) {
	cleanupTelemetry := telemetry.SetupForTesting(t, "test:services/scrape")

	badgerDB, err := badger.Open(badger.DefaultOptions("").WithInMemory(true))
	require.NoError(t, err)
	store := jobstore.NewStore(badgerDB, jobstore.DefaultPolicy)

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = sqlite.Exec(historydb.Schema)
	require.NoError(t, err)

	session := browser.NewSession(surface, browser.Config{
		HomeURL:       testHomeURL,
		ProfilePath:   t.TempDir() + "/profile.json",
		ChallengeWait: time.Millisecond * 50,
		ChallengePoll: time.Millisecond * 10,
		ScrollSettle:  time.Millisecond,
	})

	service := NewService(session, store, history.NewService(sqlite), opts)
	cleanup := func() {
		badgerDB.Close()
		sqlite.Close()
		cleanupTelemetry()
	}
	return service, store, cleanup
}

func TestFetchListingEndToEnd(t *testing.T) {
	surface := &fakeSurface{pages: map[string]string{
		testHomeURL:           loggedInPage,
		upwork.BestMatchesURL: listingFixture(t),
	}}
	service, store, cleanup := setup(t, surface, Options{})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	report, err := service.FetchListing(ctx, upwork.BestMatchesURL, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 18)
	require.Equal(t, 2, report.Skipped)
	require.Empty(t, report.ObservedMarkers)

	cached, err := store.List(ctx, jobstore.Filter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, cached, 18)

	runs, err := service.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, history.StatusCompleted, runs[0].Status)
	require.Equal(t, int64(18), runs[0].JobCount)
}

func TestFetchDetailMergesIntoTileRecord(t *testing.T) {
	detailHTML := `<html><body>
<h1 data-test="job-title">Sample Job 01: Build a Go scraper</h1>
<div data-test="job-budget">Hourly: $40.00-$70.00</div>
<div data-test="TokenClamp">
  <span class="air3-token">Go</span>
  <span class="air3-token">Playwright</span>
</div>
<div data-qa="client-location">Canada</div>
<div data-test="connects">12</div>
</body></html>`

	detailURL := "https://www.upwork.com/jobs/Sample_Job_01_~0100000000000001"
	surface := &fakeSurface{pages: map[string]string{
		testHomeURL:           loggedInPage,
		upwork.BestMatchesURL: listingFixture(t),
		detailURL:             detailHTML,
	}}
	service, _, cleanup := setup(t, surface, Options{})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	_, err := service.FetchListing(ctx, upwork.BestMatchesURL, 0)
	require.NoError(t, err)

	record, err := service.FetchDetail(ctx, detailURL)
	require.NoError(t, err)
	require.Equal(t, "~0100000000000001", record.ID)

	// detail-derived budget replaced the tile's, tile-derived skills
	// survive alongside the detail's addition
	require.Equal(t, jobstore.BudgetHourly, record.Budget.Kind)
	require.Equal(t, 40.0, record.Budget.HourlyMin)
	require.ElementsMatch(t, []string{"go", "scraping", "playwright"}, record.Skills)
	require.Equal(t, "Canada", record.ClientCountry)
	require.NotNil(t, record.ConnectsRequired)
	require.Equal(t, 12, *record.ConnectsRequired)
	// the tile's proposal bucket was never contradicted, so it stays
	require.Equal(t, "Less than 5", record.Proposals.Bucket)
}

func TestFetchListingMaxItems(t *testing.T) {
	surface := &fakeSurface{pages: map[string]string{
		testHomeURL:           loggedInPage,
		upwork.BestMatchesURL: listingFixture(t),
	}}
	service, _, cleanup := setup(t, surface, Options{})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	report, err := service.FetchListing(ctx, upwork.BestMatchesURL, 5)
	require.NoError(t, err)
	require.Len(t, report.Records, 5)
}

func TestFetchListingRetriesTransientNavigation(t *testing.T) {
	surface := &fakeSurface{
		pages: map[string]string{
			testHomeURL:           loggedInPage,
			upwork.BestMatchesURL: listingFixture(t),
		},
		gotoFailures: map[string]int{upwork.BestMatchesURL: 2},
	}
	service, _, cleanup := setup(t, surface, Options{NavigateRetryWait: time.Millisecond})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	report, err := service.FetchListing(ctx, upwork.BestMatchesURL, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 18)
	// home navigation, two timed-out attempts, one successful attempt
	require.Equal(t, 4, surface.gotoCalls)
}

func TestFetchListingGivesUpAfterRetryBudget(t *testing.T) {
	surface := &fakeSurface{
		pages:        map[string]string{testHomeURL: loggedInPage},
		gotoFailures: map[string]int{upwork.BestMatchesURL: 5},
	}
	service, _, cleanup := setup(t, surface, Options{NavigateRetryWait: time.Millisecond})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	_, err := service.FetchListing(ctx, upwork.BestMatchesURL, 0)
	require.ErrorContains(t, err, "ERR_TIMED_OUT")
	require.Equal(t, 4, surface.gotoCalls)
}

func TestFetchListingRequiresSession(t *testing.T) {
	surface := &fakeSurface{pages: map[string]string{}}
	service, _, cleanup := setup(t, surface, Options{})
	defer cleanup()

	_, err := service.FetchListing(context.Background(), upwork.BestMatchesURL, 0)
	var authErr *browser.AuthRequiredError
	require.ErrorAs(t, err, &authErr)

	runs, err := service.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, history.StatusFailed, runs[0].Status)
}

func TestSearchStampsQuery(t *testing.T) {
	params := upwork.SearchParams{Query: "golang scraper", MaxResults: 10}
	surface := &fakeSurface{pages: map[string]string{
		testHomeURL:        loggedInPage,
		params.SearchURL(): listingFixture(t),
	}}
	service, store, cleanup := setup(t, surface, Options{})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	report, err := service.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, report.Records, 10)

	record, err := store.Get(ctx, report.Records[0].ID)
	require.NoError(t, err)
	require.Equal(t, "golang scraper", record.SearchQuery)
	require.Equal(t, "search", record.Source)
}

func TestEnrichDetailsDegradesPerTile(t *testing.T) {
	detailTemplate := `<html><body>
<div data-test="Description">Full description fetched over HTTP.</div>
<div data-test="connects">9</div>
</body></html>`

	fetcher := &fakeFetcher{pages: map[string]string{}}
	surface := &fakeSurface{pages: map[string]string{
		testHomeURL:           loggedInPage,
		upwork.BestMatchesURL: listingFixture(t),
	}}
	service, store, cleanup := setup(t, surface, Options{
		EnrichDetails:     true,
		DetailConcurrency: 3,
		NewFetcher: func(cookies []browser.Cookie, userAgent string) (PageFetcher, error) {
			return fetcher, nil
		},
	})
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, service.StartSession(ctx))

	// only the first three tiles have fetchable detail pages
	for _, i := range []string{"01", "02", "03"} {
		url := "https://www.upwork.com/jobs/Sample_Job_" + i + "_~01000000000000" + i + "/"
		fetcher.pages[url] = detailTemplate
	}

	report, err := service.FetchListing(ctx, upwork.BestMatchesURL, 0)
	require.NoError(t, err)
	require.Len(t, report.Records, 18)
	require.Equal(t, 3, report.Enriched)
	require.Equal(t, 18, fetcher.calls)

	enriched, err := store.Get(ctx, "~0100000000000001")
	require.NoError(t, err)
	require.Equal(t, "Full description fetched over HTTP.", enriched.Description)

	plain, err := store.Get(ctx, "~0100000000000004")
	require.NoError(t, err)
	require.NotEmpty(t, plain.Title)
	require.NotContains(t, plain.Description, "HTTP")
}
