package commands

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/configutil"
	"jobscout-backend/lib/restyutil"
	"jobscout-backend/lib/scrapers/upwork"
	"jobscout-backend/lib/serviceutil"
	"jobscout-backend/lib/sqliteutil"
	"jobscout-backend/services/history"
	historydb "jobscout-backend/services/history/db"
	"jobscout-backend/services/jobstore"
	"jobscout-backend/services/scrape"
)

type Config struct {
	Profile           string `json:"profile"`
	Headless          bool   `json:"headless"`
	EnrichDetails     bool   `json:"enrich_details"`
	DetailConcurrency int    `json:"detail_concurrency"`
	// AuthMarker is the markup fragment that confirms a logged-in
	// page. Override when the site changes its navigation shell.
	AuthMarker string `json:"auth_marker"`
	// DebugHTTP dumps every request/response pair to .dev/resty.
	DebugHTTP bool `json:"debug_http"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("jobscout.json5")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Profile == "" {
		cfg.Profile = "profile.json"
	}
	if cfg.AuthMarker == "" {
		cfg.AuthMarker = `"isLoggedIn":true`
	}
	return cfg
}

type stores struct {
	store   *jobstore.Store
	history history.Service

	badgerDB *badger.DB
	sqlite   *sql.DB
}

func (s stores) Close() {
	err := s.badgerDB.Close()
	if err != nil {
		slog.Warn("failed to close cache", "err", err)
	}
	err = s.sqlite.Close()
	if err != nil {
		slog.Warn("failed to close history db", "err", err)
	}
}

func openStores() stores {
	badgerDB, err := badger.Open(badger.DefaultOptions(*cachePath))
	if err != nil {
		serviceutil.Fatal("failed to open cache", err)
	}
	sqlite, err := sqliteutil.OpenDB(historydb.Schema, *historyPath)
	if err != nil {
		serviceutil.Fatal("failed to open history db", err)
	}
	return stores{
		store:    jobstore.NewStore(badgerDB, jobstore.DefaultPolicy),
		history:  history.NewService(sqlite),
		badgerDB: badgerDB,
		sqlite:   sqlite,
	}
}

// openService wires the full stack: browser session, cache and run
// history. The returned cleanup stops the session and closes both
// stores.
func openService(cfg Config) (*scrape.Service, func()) {
	if cfg.DebugHTTP {
		upwork.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/upwork"))
	}
	st := openStores()
	session := newSession(cfg)
	service := scrape.NewService(session, st.store, st.history, scrape.Options{
		Headless:          cfg.Headless,
		EnrichDetails:     cfg.EnrichDetails,
		DetailConcurrency: cfg.DetailConcurrency,
	})
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		err := service.StopSession(ctx)
		if err != nil {
			slog.Warn("failed to stop session", "err", err)
		}
		st.Close()
	}
	return service, cleanup
}

func newSession(cfg Config) *browser.Session {
	return browser.NewSession(browser.NewPlaywrightSurface(), browser.Config{
		HomeURL:     upwork.BestMatchesURL,
		AuthMarker:  cfg.AuthMarker,
		ProfilePath: cfg.Profile,
	})
}
