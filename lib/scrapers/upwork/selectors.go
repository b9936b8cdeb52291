package upwork

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout-backend/lib/htmlutil"
	"jobscout-backend/lib/textutil"
	"jobscout-backend/services/jobstore"
)

// Detail page rules keyed on the site's data-test/data-qa attributes.
// Per field the first selector with a match wins; a miss leaves the
// field unset. Ordered so newer markup is tried first.
var detailTextRules = []struct {
	field     jobstore.Field
	selectors []string
	assign    func(r *jobstore.JobRecord, text string) bool
}{
	{
		jobstore.FieldTitle,
		[]string{`[data-test="job-title"]`, `[data-test="JobTitle"]`, `h1`},
		func(r *jobstore.JobRecord, text string) bool { r.Title = text; return true },
	},
	{
		jobstore.FieldDescription,
		[]string{`[data-test="Description"]`, `[data-test="job-description"]`, `.job-description`},
		func(r *jobstore.JobRecord, text string) bool { r.Description = text; return true },
	},
	{
		jobstore.FieldExperience,
		[]string{`[data-test="experience-level"]`, `[data-test="contractor-tier"]`},
		func(r *jobstore.JobRecord, text string) bool {
			r.Experience = jobstore.ParseExperienceLevel(text)
			return r.Experience != jobstore.ExperienceUnknown
		},
	},
	{
		jobstore.FieldDuration,
		[]string{`[data-test="duration"]`},
		func(r *jobstore.JobRecord, text string) bool { r.Duration = text; return true },
	},
	{
		jobstore.FieldWeeklyHours,
		[]string{`[data-test="workload"]`},
		func(r *jobstore.JobRecord, text string) bool { r.WeeklyHours = text; return true },
	},
	{
		jobstore.FieldClientCountry,
		[]string{`[data-qa="client-location"]`},
		func(r *jobstore.JobRecord, text string) bool { r.ClientCountry = text; return true },
	},
	{
		jobstore.FieldClientSpent,
		[]string{`[data-qa="client-spend"]`},
		func(r *jobstore.JobRecord, text string) bool {
			spent, ok := textutil.ParseMoney(text)
			if !ok {
				return false
			}
			r.ClientTotalSpent = &spent
			return true
		},
	},
	{
		jobstore.FieldClientRating,
		[]string{`[data-qa="client-rating"]`},
		func(r *jobstore.JobRecord, text string) bool {
			rating, ok := textutil.ParseMoney(text)
			if !ok {
				return false
			}
			r.ClientRating = &rating
			return true
		},
	},
	{
		jobstore.FieldProposals,
		[]string{`[data-test="proposals"]`},
		func(r *jobstore.JobRecord, text string) bool {
			count, ok := textutil.ParseInt(text)
			if !ok {
				return false
			}
			r.Proposals = jobstore.Proposals{Count: &count}
			return true
		},
	},
	{
		jobstore.FieldConnectsRequired,
		[]string{`[data-test="connects"]`},
		func(r *jobstore.JobRecord, text string) bool {
			connects, ok := textutil.ParseInt(text)
			if !ok {
				return false
			}
			r.ConnectsRequired = &connects
			return true
		},
	},
}

var detailSkillSelectors = []string{
	`[data-test="TokenClamp"] .air3-token`,
	`a[data-test="attr-item"]`,
}

var detailBudgetSelectors = []string{
	`[data-test="job-budget"]`,
	`[data-test="Budget"]`,
}

// extractFromSelectors fills a partial record from attribute-tagged
// elements.
func extractFromSelectors(doc *goquery.Document, now time.Time) (*jobstore.JobRecord, int) {
	record := &jobstore.JobRecord{}
	matched := 0

	for _, rule := range detailTextRules {
		for _, selector := range rule.selectors {
			sel := doc.Find(selector).First()
			if sel.Length() == 0 {
				continue
			}
			text := htmlutil.SelectionText(sel)
			if text == "" || !rule.assign(record, text) {
				continue
			}
			record.Stamp(rule.field, jobstore.StrategySelectors, now)
			matched++
			break
		}
	}

	for _, selector := range detailBudgetSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if budget := parseBudgetText(htmlutil.SelectionText(sel)); !budget.IsZero() {
			record.Budget = budget
			record.Stamp(jobstore.FieldBudget, jobstore.StrategySelectors, now)
			matched++
		}
		break
	}

	for _, selector := range detailSkillSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		var skills []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if text := htmlutil.SelectionText(s); text != "" {
				skills = append(skills, text)
			}
		})
		if record.AddSkills(skills) > 0 {
			record.Stamp(jobstore.FieldSkills, jobstore.StrategySelectors, now)
			matched++
		}
		break
	}

	if posted := findPostedText(doc.Selection); posted != "" {
		record.PostedAt = parsePostedAt(posted, now)
		record.Stamp(jobstore.FieldPostedAt, jobstore.StrategySelectors, now)
		matched++
	}

	return record, matched
}

func findPostedText(root *goquery.Selection) string {
	sel := root.Find(`[data-test="posted-on"]`).First()
	if sel.Length() == 0 {
		sel = root.Find("time").First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if text := htmlutil.SelectionText(sel); text != "" {
		return text
	}
	datetime, _ := sel.Attr("datetime")
	return datetime
}

var hourlyRangePattern = regexp.MustCompile(`\$([\d,.]+)\s*[-–]\s*\$([\d,.]+)`)

// parseBudgetText classifies budget text such as "Hourly: $30.00-$45.00"
// or "Fixed-price $500".
func parseBudgetText(text string) jobstore.Budget {
	if text == "" {
		return jobstore.Budget{}
	}
	lower := strings.ToLower(text)
	hourly := strings.Contains(lower, "hourly") || strings.Contains(lower, "/hr")

	if hourly {
		if low, high, ok := textutil.ParseMoneyRange(text); ok {
			return jobstore.Budget{Kind: jobstore.BudgetHourly, HourlyMin: low, HourlyMax: high}
		}
		if rate, ok := textutil.ParseMoney(text); ok {
			return jobstore.Budget{Kind: jobstore.BudgetHourly, HourlyMin: rate, HourlyMax: rate}
		}
		return jobstore.Budget{}
	}

	if amount, ok := textutil.ParseMoney(text); ok {
		return jobstore.Budget{Kind: jobstore.BudgetFixed, Amount: amount}
	}
	return jobstore.Budget{}
}

var relativeTimePattern = regexp.MustCompile(`(?i)(\d+)\s+(minute|hour|day|week|month)s?\s+ago`)

// parsePostedAt keeps the raw text and best-effort resolves relative
// phrases ("3 hours ago") against now. Unrecognized text keeps only
// the raw form.
func parsePostedAt(raw string, now time.Time) jobstore.PostedAt {
	posted := jobstore.PostedAt{Raw: raw}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		posted.Parsed = parsed
		return posted
	}

	groups := relativeTimePattern.FindStringSubmatch(raw)
	if groups == nil {
		if strings.Contains(strings.ToLower(raw), "yesterday") {
			posted.Parsed = now.AddDate(0, 0, -1)
		}
		return posted
	}
	n, ok := textutil.ParseInt(groups[1])
	if !ok {
		return posted
	}
	switch strings.ToLower(groups[2]) {
	case "minute":
		posted.Parsed = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		posted.Parsed = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		posted.Parsed = now.AddDate(0, 0, -n)
	case "week":
		posted.Parsed = now.AddDate(0, 0, -7*n)
	case "month":
		posted.Parsed = now.AddDate(0, -n, 0)
	}
	return posted
}
