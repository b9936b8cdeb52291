package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/scrapers/upwork"
	"jobscout-backend/services/history"
	"jobscout-backend/services/jobstore"
)

var tracer = otel.Tracer("services/scrape")

// PageFetcher fetches a rendered document over plain HTTP, reusing the
// browser session's identity.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

type Options struct {
	Headless bool
	// DetailConcurrency bounds parallel per-tile detail fetches.
	DetailConcurrency int
	// EnrichDetails controls whether listing fetches follow each tile
	// to its detail page.
	EnrichDetails bool
	// NewFetcher builds the HTTP fetcher from session identity. Nil
	// means the standard client.
	NewFetcher func(cookies []browser.Cookie, userAgent string) (PageFetcher, error)
	// NavigateRetryWait is the base backoff between navigation retries.
	NavigateRetryWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.DetailConcurrency == 0 {
		o.DetailConcurrency = 4
	}
	if o.NavigateRetryWait == 0 {
		o.NavigateRetryWait = time.Second * 2
	}
	if o.NewFetcher == nil {
		o.NewFetcher = func(cookies []browser.Cookie, userAgent string) (PageFetcher, error) {
			return upwork.NewClient(upwork.ClientOptions{Cookies: cookies, UserAgent: userAgent})
		}
	}
	return o
}

// Service sequences the browser session, the extractors and the cache.
// It owns the single authoritative Session instance.
type Service struct {
	session *browser.Session
	store   *jobstore.Store
	history history.Service
	opts    Options
}

func NewService(session *browser.Session, store *jobstore.Store, hist history.Service, opts Options) *Service {
	return &Service{
		session: session,
		store:   store,
		history: hist,
		opts:    opts.withDefaults(),
	}
}

func (s *Service) StartSession(ctx context.Context) error {
	return s.session.Start(ctx, s.opts.Headless)
}

func (s *Service) CheckAuth(ctx context.Context) (browser.AuthStatus, error) {
	return s.session.CheckAuth(ctx)
}

func (s *Service) ConfirmChallenge() error {
	return s.session.ConfirmChallenge()
}

func (s *Service) SessionPhase() browser.Phase {
	return s.session.Phase()
}

func (s *Service) StopSession(ctx context.Context) error {
	return s.session.Stop(ctx)
}

// ListingReport summarizes one listing workflow.
type ListingReport struct {
	Records  []*jobstore.JobRecord
	Skipped  int
	Enriched int
	// ObservedMarkers is only populated when no tile selector matched.
	ObservedMarkers []string
	RunID           int64
}

// FetchListing loads a listing page in the browser, scrolls it out,
// extracts every tile and upserts each into the cache. With detail
// enrichment on, each tile's detail page is fetched over HTTP in
// parallel; an enrichment failure leaves the tile-level record in
// place.
func (s *Service) FetchListing(ctx context.Context, listURL string, maxItems int) (ListingReport, error) {
	ctx, span := tracer.Start(ctx, "FetchListing")
	defer span.End()
	span.SetAttributes(attribute.String("url", listURL))

	return s.runListing(ctx, listURL, listingSource(listURL), "", maxItems)
}

// Search runs a parameterized job search and caches its results.
func (s *Service) Search(ctx context.Context, params upwork.SearchParams) (ListingReport, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(attribute.String("query", params.Query))

	return s.runListing(ctx, params.SearchURL(), "search", params.Query, params.MaxResults)
}

func (s *Service) runListing(ctx context.Context, listURL, source, searchQuery string, maxItems int) (ListingReport, error) {
	var report ListingReport

	runID, err := s.history.Start(ctx, source, searchQuery, map[string]string{"url": listURL})
	if err != nil {
		slog.WarnContext(ctx, "failed to record scrape run", "err", err)
	}
	report.RunID = runID

	records, result, err := s.collectTiles(ctx, listURL, source, maxItems)
	if err != nil {
		s.completeRun(ctx, runID, 0, err)
		return report, err
	}
	report.Skipped = result.Skipped
	report.ObservedMarkers = result.ObservedMarkers

	for _, record := range records {
		if searchQuery != "" {
			record.SearchQuery = searchQuery
		}
		stored, err := s.store.Upsert(ctx, record)
		if err != nil {
			s.completeRun(ctx, runID, len(report.Records), err)
			return report, err
		}
		report.Records = append(report.Records, stored)
	}

	if s.opts.EnrichDetails && len(report.Records) > 0 {
		report.Enriched = s.enrichDetails(ctx, report.Records)
	}

	s.completeRun(ctx, runID, len(report.Records), nil)
	return report, nil
}

const navigateAttempts = 3

// navigateWithRetry retries transient navigation failures with a
// linear backoff. Auth and challenge classifications are terminal,
// the caller remediates those instead.
func (s *Service) navigateWithRetry(ctx context.Context, url string) (string, error) {
	var content string
	var err error
	for attempt := 0; attempt < navigateAttempts; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "retrying navigation",
				"url", url, "attempt", attempt+1, "err", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.opts.NavigateRetryWait * time.Duration(attempt)):
			}
		}
		content, err = s.session.Navigate(ctx, url, 0)
		if err == nil {
			return content, nil
		}
		var authErr *browser.AuthRequiredError
		var blocked *browser.BlockedError
		if errors.As(err, &authErr) || errors.As(err, &blocked) {
			return "", err
		}
	}
	return "", err
}

func (s *Service) collectTiles(ctx context.Context, listURL, source string, maxItems int) ([]*jobstore.JobRecord, upwork.TileResult, error) {
	ctx, span := tracer.Start(ctx, "collectTiles")
	defer span.End()

	content, err := s.navigateWithRetry(ctx, listURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return nil, upwork.TileResult{}, err
	}

	scrolls, err := s.session.ScrollUntilStable(ctx, 10, 200)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrolling failed")
		return nil, upwork.TileResult{}, err
	}
	if scrolls > 0 {
		content, err = s.session.PageContent(ctx)
		if err != nil {
			return nil, upwork.TileResult{}, err
		}
	}

	result := upwork.ExtractTiles(content, source, time.Now())
	span.SetAttributes(
		attribute.Int("tiles", len(result.Records)),
		attribute.Int("skipped", result.Skipped),
	)
	if len(result.Records) == 0 {
		slog.WarnContext(ctx, "no tiles matched any selector",
			"url", listURL, "observed_markers", result.ObservedMarkers)
	}
	if result.Skipped > 0 {
		slog.InfoContext(ctx, "skipped malformed tiles", "count", result.Skipped)
	}

	records := result.Records
	if maxItems > 0 && len(records) > maxItems {
		records = records[:maxItems]
	}
	return records, result, nil
}

// enrichDetails follows each record to its detail page over HTTP.
// Failures are logged and leave the tile-level record untouched.
func (s *Service) enrichDetails(ctx context.Context, records []*jobstore.JobRecord) int {
	ctx, span := tracer.Start(ctx, "enrichDetails")
	defer span.End()

	cookies, userAgent := s.session.Identity()
	fetcher, err := s.opts.NewFetcher(cookies, userAgent)
	if err != nil {
		slog.WarnContext(ctx, "failed to build detail fetcher", "err", err)
		return 0
	}

	enriched := make(chan struct{}, len(records))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.DetailConcurrency)

	for _, record := range records {
		record := record
		group.Go(func() error {
			detailURL := record.URL
			if detailURL == "" {
				detailURL = upwork.DetailURL(record.ID)
			}
			content, err := fetcher.FetchPage(groupCtx, detailURL)
			if err != nil {
				slog.WarnContext(groupCtx, "detail enrichment failed",
					"id", record.ID, "err", err)
				return nil
			}
			detail, diag := upwork.ExtractDetail(content, detailURL, time.Now())
			if detail.ID == "" {
				detail.ID = record.ID
			}
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			if _, err := s.store.Upsert(groupCtx, detail); err != nil {
				slog.WarnContext(groupCtx, "detail upsert failed",
					"id", record.ID, "err", err)
				return nil
			}
			slog.DebugContext(groupCtx, "enriched record",
				"id", record.ID,
				"graph_fields", diag.GraphFields,
				"selector_fields", diag.SelectorFields)
			enriched <- struct{}{}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		slog.WarnContext(ctx, "detail enrichment aborted", "err", err)
	}
	close(enriched)
	return len(enriched)
}

// FetchDetail loads one job detail page in the browser and merges the
// extracted record into the cache. Extraction and upsert complete as a
// unit: a canceled context means nothing is written.
func (s *Service) FetchDetail(ctx context.Context, jobURL string) (*jobstore.JobRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchDetail")
	defer span.End()
	span.SetAttributes(attribute.String("url", jobURL))

	if upwork.JobIDFromURL(jobURL) == "" {
		err := fmt.Errorf("no job id in url %q", jobURL)
		span.SetStatus(codes.Error, "bad detail url")
		return nil, err
	}

	runID, err := s.history.Start(ctx, "detail", "", map[string]string{"url": jobURL})
	if err != nil {
		slog.WarnContext(ctx, "failed to record scrape run", "err", err)
	}

	content, err := s.navigateWithRetry(ctx, jobURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		s.completeRun(ctx, runID, 0, err)
		return nil, err
	}

	record, diag := upwork.ExtractDetail(content, jobURL, time.Now())
	span.SetAttributes(
		attribute.Int("graph_fields", diag.GraphFields),
		attribute.Int("selector_fields", diag.SelectorFields),
		attribute.Int("meta_fields", diag.MetaFields),
	)

	if err := ctx.Err(); err != nil {
		s.completeRun(ctx, runID, 0, err)
		return nil, err
	}
	stored, err := s.store.Upsert(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		s.completeRun(ctx, runID, 0, err)
		return nil, err
	}

	s.completeRun(ctx, runID, 1, nil)
	return stored, nil
}

func (s *Service) CachedRecord(ctx context.Context, id string) (*jobstore.JobRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) CachedList(ctx context.Context, filter jobstore.Filter) ([]*jobstore.JobRecord, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) CacheStats(ctx context.Context) (jobstore.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) RecentRuns(ctx context.Context, limit int) ([]history.Run, error) {
	return s.history.Recent(ctx, limit)
}

func (s *Service) completeRun(ctx context.Context, runID int64, count int, runErr error) {
	if runID == 0 {
		return
	}
	if err := s.history.Complete(ctx, runID, count, runErr); err != nil {
		slog.WarnContext(ctx, "failed to close scrape run", "err", err)
	}
}

func listingSource(listURL string) string {
	if strings.Contains(listURL, "/search/") {
		return "search"
	}
	return "best_matches"
}
