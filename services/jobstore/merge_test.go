package jobstore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func tileRecord(observed time.Time) *JobRecord {
	r := &JobRecord{
		ID:        "~01aabbcc",
		URL:       "https://www.upwork.com/jobs/~01aabbcc",
		Title:     "Build a scraper",
		Skills:    []string{"python", "fastapi"},
		Source:    "best_matches",
		FetchedAt: observed,
	}
	r.Stamp(FieldTitle, StrategyTile, observed)
	r.Stamp(FieldSkills, StrategyTile, observed)
	return r
}

func detailRecord(observed time.Time) *JobRecord {
	r := &JobRecord{
		ID:          "~01aabbcc",
		URL:         "https://www.upwork.com/jobs/~01aabbcc",
		Title:       "Build a scraper for marketplace data",
		Description: "We need a robust scraper with retry logic.",
		Budget:      Budget{Kind: BudgetHourly, HourlyMin: 30, HourlyMax: 45},
		Experience:  ExperienceExpert,
		Skills:      []string{"Python", "Playwright"},
		Source:      "detail",
		FetchedAt:   observed,
	}
	r.Stamp(FieldTitle, StrategyEmbeddedGraph, observed)
	r.Stamp(FieldDescription, StrategyEmbeddedGraph, observed)
	r.Stamp(FieldBudget, StrategyEmbeddedGraph, observed)
	r.Stamp(FieldExperience, StrategySelectors, observed)
	r.Stamp(FieldSkills, StrategySelectors, observed)
	return r
}

func TestMergeNilIdentity(t *testing.T) {
	now := time.Now()
	a := tileRecord(now)

	require.Empty(t, cmp.Diff(a, Merge(a, nil, DefaultPolicy)))
	require.Empty(t, cmp.Diff(a, Merge(nil, a, DefaultPolicy)))
}

func TestMergeIdempotent(t *testing.T) {
	now := time.Now()
	a := tileRecord(now)
	b := detailRecord(now.Add(time.Minute))

	once := Merge(a, b, DefaultPolicy)
	twice := Merge(once, b, DefaultPolicy)
	require.Empty(t, cmp.Diff(once, twice))
}

func TestMergeInsertNormalizesSkills(t *testing.T) {
	now := time.Now()
	b := detailRecord(now)

	// the insert path must store the same normalized skill set the
	// union path produces, or re-applying the record grows the set
	inserted := Merge(nil, b, DefaultPolicy)
	require.Equal(t, []string{"python", "playwright"}, inserted.Skills)

	again := Merge(inserted, b, DefaultPolicy)
	require.Empty(t, cmp.Diff(inserted, again))
}

func TestMergeNeverRemovesFields(t *testing.T) {
	now := time.Now()
	a := detailRecord(now)

	// a sparse re-scrape of the tile must not erase detail fields
	sparse := &JobRecord{ID: a.ID, URL: a.URL, Title: "Build a scraper", FetchedAt: now.Add(time.Hour)}
	sparse.Stamp(FieldTitle, StrategyTile, sparse.FetchedAt)

	merged := Merge(a, sparse, DefaultPolicy)
	require.Equal(t, a.Description, merged.Description)
	require.Equal(t, a.Budget, merged.Budget)
	require.Equal(t, a.Experience, merged.Experience)
	require.ElementsMatch(t, a.Skills, merged.Skills)
}

func TestMergeTileDetailAcrossSources(t *testing.T) {
	now := time.Now()
	merged := Merge(tileRecord(now), detailRecord(now.Add(time.Minute)), DefaultPolicy)

	require.Equal(t, "~01aabbcc", merged.ID)
	// detail title is both higher priority and longer
	require.Equal(t, "Build a scraper for marketplace data", merged.Title)
	require.Equal(t, BudgetHourly, merged.Budget.Kind)
	// skills union across both passes, case-normalized
	require.ElementsMatch(t,
		[]string{"python", "fastapi", "playwright"},
		merged.Skills,
	)
	require.Equal(t, StrategyEmbeddedGraph, merged.Provenance[FieldTitle].Strategy)
}

func TestMergeLowerPriorityFillsGapsOnly(t *testing.T) {
	now := time.Now()
	existing := detailRecord(now)

	meta := &JobRecord{
		ID:          existing.ID,
		Title:       "short",
		Description: "meta description",
		Duration:    "1 to 3 months",
		FetchedAt:   now.Add(time.Minute),
	}
	meta.Stamp(FieldTitle, StrategyMetaTags, meta.FetchedAt)
	meta.Stamp(FieldDescription, StrategyMetaTags, meta.FetchedAt)
	meta.Stamp(FieldDuration, StrategyMetaTags, meta.FetchedAt)

	merged := Merge(existing, meta, DefaultPolicy)
	// lower priority and not richer: no overwrite
	require.Equal(t, existing.Title, merged.Title)
	require.Equal(t, existing.Description, merged.Description)
	// absent field gets filled regardless of priority
	require.Equal(t, "1 to 3 months", merged.Duration)
	require.Equal(t, StrategyMetaTags, merged.Provenance[FieldDuration].Strategy)
}

func TestMergeRicherValueOverwrites(t *testing.T) {
	now := time.Now()
	existing := &JobRecord{ID: "~01x", Description: "short one", FetchedAt: now}
	existing.Stamp(FieldDescription, StrategyEmbeddedGraph, now)

	incoming := &JobRecord{ID: "~01x", Description: "a significantly longer description body", FetchedAt: now.Add(time.Minute)}
	incoming.Stamp(FieldDescription, StrategySelectors, incoming.FetchedAt)

	merged := Merge(existing, incoming, DefaultPolicy)
	require.Equal(t, incoming.Description, merged.Description)
	require.Equal(t, StrategySelectors, merged.Provenance[FieldDescription].Strategy)

	strict := Merge(existing, incoming, Policy{PreferRicher: false})
	require.Equal(t, existing.Description, strict.Description)
}

func TestMergeUnchangedValueKeepsProvenance(t *testing.T) {
	now := time.Now()
	existing := &JobRecord{ID: "~01x", Title: "same title", FetchedAt: now}
	existing.Stamp(FieldTitle, StrategySelectors, now)

	incoming := &JobRecord{ID: "~01x", Title: "same title", FetchedAt: now.Add(time.Hour)}
	incoming.Stamp(FieldTitle, StrategySelectors, incoming.FetchedAt)

	merged := Merge(existing, incoming, DefaultPolicy)
	require.Equal(t, now, merged.Provenance[FieldTitle].ObservedAt)
}

func TestProposalsExactRicherThanBucket(t *testing.T) {
	now := time.Now()
	existing := &JobRecord{ID: "~01x", Proposals: Proposals{Bucket: "50+"}, FetchedAt: now}
	existing.Stamp(FieldProposals, StrategyEmbeddedGraph, now)

	incoming := &JobRecord{ID: "~01x", Proposals: Proposals{Count: intPtr(52)}, FetchedAt: now.Add(time.Minute)}
	incoming.Stamp(FieldProposals, StrategySelectors, incoming.FetchedAt)

	merged := Merge(existing, incoming, DefaultPolicy)
	require.NotNil(t, merged.Proposals.Count)
	require.Equal(t, 52, *merged.Proposals.Count)
}
