package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/jobstore")

var ErrNotFound = errors.New("jobstore: record not found")

const recordPrefix = "job:"

// how many times an upsert retries a conflicting commit before giving
// up; contention on a single job id should resolve well before this
const upsertRetries = 5

// Store is a durable cache of job records keyed by job identity.
// Records are only ever inserted or merged, never deleted.
type Store struct {
	db     *badger.DB
	policy Policy
}

func NewStore(db *badger.DB, policy Policy) *Store {
	return &Store{db: db, policy: policy}
}

func recordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

// Upsert inserts the record if its id is unseen, otherwise merges it
// into the existing record. The read-modify-write happens inside a
// single transaction per attempt; conflicting commits are retried
// internally and never surfaced.
func (s *Store) Upsert(ctx context.Context, incoming *JobRecord) (*JobRecord, error) {
	ctx, span := tracer.Start(ctx, "store:Upsert")
	defer span.End()

	if incoming == nil || incoming.ID == "" {
		err := fmt.Errorf("jobstore: upsert requires a record with an id")
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing record id")
		return nil, err
	}
	span.SetAttributes(attribute.String("job.id", incoming.ID))

	var merged *JobRecord
	var err error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		merged, err = s.tryUpsert(incoming)
		if err == nil {
			return merged, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		span.AddEvent("retrying conflicting upsert")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "upsert failed")
	return nil, err
}

func (s *Store) tryUpsert(incoming *JobRecord) (*JobRecord, error) {
	var merged *JobRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		var existing *JobRecord
		item, err := txn.Get(recordKey(incoming.ID))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			existing = &JobRecord{}
			if err := json.Unmarshal(raw, existing); err != nil {
				return err
			}
		}

		merged = Merge(existing, incoming, s.policy)
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return txn.Set(recordKey(incoming.ID), raw)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *Store) Get(ctx context.Context, id string) (*JobRecord, error) {
	ctx, span := tracer.Start(ctx, "store:Get")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id))

	var record *JobRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record = &JobRecord{}
		return json.Unmarshal(raw, record)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read record")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Source string
	// Skills matches fuzzily so "fast api" still finds "fastapi"
	Skills        []string
	MinBudget     float64
	Experience    ExperienceLevel
	FetchedWithin time.Duration
	Limit         int
}

const defaultListLimit = 25

const skillSimilarityThreshold = 0.92

func skillMatches(want, have string) bool {
	if strings.Contains(have, want) {
		return true
	}
	return matchr.JaroWinkler(want, have, false) >= skillSimilarityThreshold
}

func (f Filter) matches(r *JobRecord, now time.Time) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Experience != ExperienceUnknown && r.Experience != f.Experience {
		return false
	}
	if f.MinBudget > 0 {
		b := r.Budget
		if b.Amount < f.MinBudget && b.HourlyMin < f.MinBudget {
			return false
		}
	}
	if f.FetchedWithin > 0 && r.FetchedAt.Before(now.Add(-f.FetchedWithin)) {
		return false
	}
	for _, want := range f.Skills {
		want = NormalizeSkill(want)
		found := false
		for _, have := range r.Skills {
			if skillMatches(want, have) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List returns matching records, most recently fetched first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*JobRecord, error) {
	ctx, span := tracer.Start(ctx, "store:List")
	defer span.End()

	now := time.Now()
	var records []*JobRecord
	err := s.forEach(func(r *JobRecord) {
		if filter.matches(r, now) {
			records = append(records, r)
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan records")
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FetchedAt.After(records[j].FetchedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalRecords        int                     `json:"total_records"`
	FieldCompleteness   map[Field]int           `json:"field_completeness"`
	TopSkills           []SkillCount            `json:"top_skills"`
	AvgBudget           float64                 `json:"avg_budget"`
	ExperienceBreakdown map[ExperienceLevel]int `json:"experience_breakdown"`
	LastFetchedAt       time.Time               `json:"last_fetched_at"`
}

const topSkillLimit = 20

// Stats summarizes the cache: totals, per-field completeness and a few
// aggregates over budgets, skills and experience tiers.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "store:Stats")
	defer span.End()

	stats := Stats{
		FieldCompleteness:   map[Field]int{},
		ExperienceBreakdown: map[ExperienceLevel]int{},
	}
	skillCounts := map[string]int{}
	var budgetSum float64
	var budgetN int

	err := s.forEach(func(r *JobRecord) {
		stats.TotalRecords++
		for _, rule := range scalarRules {
			if rule.present(r) {
				stats.FieldCompleteness[rule.field]++
			}
		}
		if len(r.Skills) > 0 {
			stats.FieldCompleteness[FieldSkills]++
		}
		for _, skill := range r.Skills {
			skillCounts[skill]++
		}
		if r.Experience != ExperienceUnknown {
			stats.ExperienceBreakdown[r.Experience]++
		}
		switch r.Budget.Kind {
		case BudgetFixed:
			budgetSum += r.Budget.Amount
			budgetN++
		case BudgetHourly:
			if r.Budget.HourlyMax > 0 {
				budgetSum += r.Budget.HourlyMax
				budgetN++
			}
		}
		if r.FetchedAt.After(stats.LastFetchedAt) {
			stats.LastFetchedAt = r.FetchedAt
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan records")
		return Stats{}, err
	}

	if budgetN > 0 {
		stats.AvgBudget = budgetSum / float64(budgetN)
	}

	for skill, count := range skillCounts {
		stats.TopSkills = append(stats.TopSkills, SkillCount{Skill: skill, Count: count})
	}
	sort.Slice(stats.TopSkills, func(i, j int) bool {
		if stats.TopSkills[i].Count != stats.TopSkills[j].Count {
			return stats.TopSkills[i].Count > stats.TopSkills[j].Count
		}
		return stats.TopSkills[i].Skill < stats.TopSkills[j].Skill
	})
	if len(stats.TopSkills) > topSkillLimit {
		stats.TopSkills = stats.TopSkills[:topSkillLimit]
	}

	return stats, nil
}

func (s *Store) forEach(fn func(r *JobRecord)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			record := &JobRecord{}
			if err := json.Unmarshal(raw, record); err != nil {
				return err
			}
			fn(record)
		}
		return nil
	})
}
