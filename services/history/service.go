package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"jobscout-backend/services/history/db"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/history")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one logged workflow row.
type Run = db.ScrapeRun

// Service logs one row per scrape workflow so past runs can be
// inspected after the fact.
type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

// Start records the beginning of a workflow and returns the run id to
// close it with. Params may be any JSON-serializable description of
// the run's inputs; nil means none.
func (s Service) Start(ctx context.Context, kind, query string, params any) (int64, error) {
	ctx, span := tracer.Start(ctx, "Start")
	defer span.End()
	span.SetAttributes(attribute.String("kind", kind))

	encoded := "{}"
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to encode run params")
			return 0, err
		}
		encoded = string(raw)
	}

	id, err := s.qry.CreateRun(ctx, db.CreateRunParams{
		Kind:      kind,
		Query:     query,
		Params:    encoded,
		StartedAt: time.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert run row")
		return 0, err
	}
	return id, nil
}

// Complete closes a run. A non-nil runErr marks the run failed and
// keeps its message.
func (s Service) Complete(ctx context.Context, id int64, jobCount int, runErr error) error {
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()

	status := StatusCompleted
	message := ""
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}

	err := s.qry.CompleteRun(ctx, db.CompleteRunParams{
		CompletedAt: time.Now().Unix(),
		JobCount:    int64(jobCount),
		Status:      status,
		Error:       message,
		ID:          id,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close run row")
		return err
	}
	return nil
}

func (s Service) Get(ctx context.Context, id int64) (db.ScrapeRun, error) {
	return s.qry.GetRun(ctx, id)
}

func (s Service) Recent(ctx context.Context, limit int) ([]db.ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.qry.ListRecentRuns(ctx, int64(limit))
}
