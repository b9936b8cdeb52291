package upwork

import (
	_ "embed"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobscout-backend/services/jobstore"
)

//go:embed testdata/detail_graph.html
var detailGraphHTML string

//go:embed testdata/detail_selectors.html
var detailSelectorsHTML string

func TestExtractDetailGraphAuthoritative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record, diag := ExtractDetail(detailGraphHTML, "https://www.upwork.com/jobs/~0100feedbeef01", now)

	require.Equal(t, "~0100feedbeef01", record.ID)
	require.Equal(t, "Senior Go Engineer for Scraping Platform", record.Title)
	require.Equal(t, jobstore.StrategyEmbeddedGraph, record.Provenance[jobstore.FieldTitle].Strategy)

	require.Equal(t, jobstore.BudgetHourly, record.Budget.Kind)
	require.Equal(t, 35.0, record.Budget.HourlyMin)
	require.Equal(t, 55.0, record.Budget.HourlyMax)

	require.ElementsMatch(t, []string{"golang", "web scraping"}, record.Skills)
	require.Equal(t, jobstore.ExperienceExpert, record.Experience)

	require.NotNil(t, record.Proposals.Count)
	require.Equal(t, 23, *record.Proposals.Count)
	require.NotNil(t, record.ConnectsRequired)
	require.Equal(t, 16, *record.ConnectsRequired)

	require.Equal(t, "United States", record.ClientCountry)
	require.NotNil(t, record.ClientTotalSpent)
	require.Equal(t, 12500.5, *record.ClientTotalSpent)
	require.NotNil(t, record.ClientRating)
	require.Equal(t, 4.9, *record.ClientRating)
	require.NotNil(t, record.PaymentVerified)
	require.True(t, *record.PaymentVerified)

	// fields the graph lacked fall through to the selector pass
	require.Equal(t, "3 to 6 months", record.Duration)
	require.Equal(t, jobstore.StrategySelectors, record.Provenance[jobstore.FieldDuration].Strategy)
	require.Equal(t, "More than 30 hrs/week", record.WeeklyHours)
	require.Equal(t, "3 hours ago", record.PostedAt.Raw)
	require.Equal(t, now.Add(-3*time.Hour), record.PostedAt.Parsed)

	require.Greater(t, diag.GraphFields, 0)
	require.Greater(t, diag.SelectorFields, 0)
}

func TestExtractDetailSelectorsOnly(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record, diag := ExtractDetail(detailSelectorsHTML, "https://www.upwork.com/jobs/~0100feedbeef02", now)

	require.Equal(t, "~0100feedbeef02", record.ID)
	require.Equal(t, "Python Data Pipeline Maintenance", record.Title)
	require.Equal(t, jobstore.StrategySelectors, record.Provenance[jobstore.FieldTitle].Strategy)

	require.Equal(t, jobstore.BudgetFixed, record.Budget.Kind)
	require.Equal(t, 1500.0, record.Budget.Amount)

	require.ElementsMatch(t, []string{"python", "etl", "postgresql"}, record.Skills)
	require.Equal(t, jobstore.ExperienceIntermediate, record.Experience)
	require.Equal(t, "Germany", record.ClientCountry)
	require.NotNil(t, record.Proposals.Count)
	require.Equal(t, 8, *record.Proposals.Count)
	require.Equal(t, now.AddDate(0, 0, -2), record.PostedAt.Parsed)

	require.Zero(t, diag.GraphFields)
	require.Greater(t, diag.SelectorFields, 0)
	require.Greater(t, diag.MetaFields, 0)
}

func TestExtractDetailMalformedGraphReference(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Fallback Title - Upwork">
</head><body>
<div data-test="Description">Selector description survives a broken graph.</div>
<script id="__NUXT_DATA__" type="application/json">
[{"title": 1, "description": 99}, "Graph Title"]
</script>
</body></html>`

	now := time.Now()
	record, diag := ExtractDetail(html, "https://www.upwork.com/jobs/~0100aa", now)

	require.Equal(t, "Graph Title", record.Title)
	require.Equal(t, jobstore.StrategyEmbeddedGraph, record.Provenance[jobstore.FieldTitle].Strategy)
	require.Equal(t, "Selector description survives a broken graph.", record.Description)
	require.Equal(t, jobstore.StrategySelectors, record.Provenance[jobstore.FieldDescription].Strategy)
	require.Equal(t, 1, diag.GraphFields)
}

func TestExtractDetailMetaOnly(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Meta Only Job">
<meta name="description" content="Only meta tags rendered.">
<meta property="og:url" content="https://www.upwork.com/jobs/~0100bb">
</head><body></body></html>`

	record, diag := ExtractDetail(html, "", time.Now())

	require.Equal(t, "~0100bb", record.ID)
	require.Equal(t, "Meta Only Job", record.Title)
	require.Equal(t, jobstore.StrategyMetaTags, record.Provenance[jobstore.FieldTitle].Strategy)
	require.Equal(t, "Only meta tags rendered.", record.Description)
	require.Zero(t, diag.GraphFields)
	require.Zero(t, diag.SelectorFields)
}

func TestExtractDetailEmptyPageIsNotAnError(t *testing.T) {
	record, diag := ExtractDetail("<html><body></body></html>", "https://www.upwork.com/jobs/~0100cc", time.Now())

	require.Equal(t, "~0100cc", record.ID)
	require.Empty(t, record.Title)
	require.Zero(t, diag.GraphFields)
	require.Zero(t, diag.SelectorFields)
	require.Zero(t, diag.MetaFields)
}

func TestParseBudgetText(t *testing.T) {
	cases := []struct {
		text     string
		expected jobstore.Budget
	}{
		{"Hourly: $30.00-$45.00", jobstore.Budget{Kind: jobstore.BudgetHourly, HourlyMin: 30, HourlyMax: 45}},
		{"Hourly: $60.00/hr", jobstore.Budget{Kind: jobstore.BudgetHourly, HourlyMin: 60, HourlyMax: 60}},
		{"Fixed price: $500", jobstore.Budget{Kind: jobstore.BudgetFixed, Amount: 500}},
		{"Fixed-price $1,500.00", jobstore.Budget{Kind: jobstore.BudgetFixed, Amount: 1500}},
		{"", jobstore.Budget{}},
		{"Negotiable", jobstore.Budget{}},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, parseBudgetText(c.text), "text: %q", c.text)
	}
}

func TestParsePostedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	posted := parsePostedAt("3 hours ago", now)
	require.Equal(t, now.Add(-3*time.Hour), posted.Parsed)

	posted = parsePostedAt("2 weeks ago", now)
	require.Equal(t, now.AddDate(0, 0, -14), posted.Parsed)

	posted = parsePostedAt("yesterday", now)
	require.Equal(t, now.AddDate(0, 0, -1), posted.Parsed)

	posted = parsePostedAt("2025-05-30T09:00:00Z", now)
	require.Equal(t, time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC), posted.Parsed)

	posted = parsePostedAt("recently", now)
	require.Equal(t, "recently", posted.Raw)
	require.True(t, posted.Parsed.IsZero())
}
