package upwork

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout-backend/lib/textutil"
	"jobscout-backend/services/jobstore"
)

// The page serializes its data model as one flat value array where
// compound values reference other slots by index. A job object looks
// like {"title": 12, "skills": 40} with the real values living at
// slots 12 and 40, recursively.
const maxGraphDepth = 32

type nuxtGraph struct {
	values []any
}

func parseEmbeddedGraph(doc *goquery.Document) (*nuxtGraph, bool) {
	raw := strings.TrimSpace(doc.Find(`script#__NUXT_DATA__`).First().Text())
	if raw == "" {
		return nil, false
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false
	}
	return &nuxtGraph{values: values}, true
}

// Deref resolves the value at slot idx, following index references
// until primitives are reached. A cyclic, out-of-range or too-deep
// reference resolves to absent, never an error.
func (g *nuxtGraph) Deref(idx int) (any, bool) {
	return g.deref(idx, map[int]bool{}, 0)
}

func (g *nuxtGraph) deref(idx int, visited map[int]bool, depth int) (any, bool) {
	if depth > maxGraphDepth || idx < 0 || idx >= len(g.values) || visited[idx] {
		return nil, false
	}
	visited[idx] = true
	defer delete(visited, idx)
	return g.materialize(g.values[idx], visited, depth+1)
}

func (g *nuxtGraph) materialize(v any, visited map[int]bool, depth int) (any, bool) {
	if depth > maxGraphDepth {
		return nil, false
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, ref := range val {
			if idx, ok := asGraphIndex(ref); ok {
				if resolved, ok := g.deref(idx, visited, depth); ok {
					out[key] = resolved
				}
				continue
			}
			if resolved, ok := g.materialize(ref, visited, depth+1); ok {
				out[key] = resolved
			}
		}
		return out, true
	case []any:
		out := make([]any, 0, len(val))
		for _, ref := range val {
			if idx, ok := asGraphIndex(ref); ok {
				if resolved, ok := g.deref(idx, visited, depth); ok {
					out = append(out, resolved)
				}
				continue
			}
			if resolved, ok := g.materialize(ref, visited, depth+1); ok {
				out = append(out, resolved)
			}
		}
		return out, true
	default:
		return v, true
	}
}

func asGraphIndex(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// graphKeyMap maps the site's internal field names onto record fields.
// Several site names feed the same field; first resolved value wins.
var graphKeyMap = map[string]string{
	"title":          "title",
	"jobTitle":       "title",
	"description":    "description",
	"jobDescription": "description",
	"skills":         "skills",
	"duration":       "duration",
	"durationLabel":  "duration",
	"engagement":     "weekly_hours",

	"amount":          "budget_amount",
	"hourlyBudgetMin": "hourly_min",
	"hourlyBudgetMax": "hourly_max",

	"contractorTier": "experience",
	"tierLabel":      "experience",

	"publishedOn": "posted",
	"createdOn":   "posted",

	"country":                   "client_country",
	"clientCountry":             "client_country",
	"totalSpent":                "client_total_spent",
	"score":                     "client_rating",
	"paymentVerificationStatus": "payment_verified",

	"proposalCount": "proposals",
	"connectPrice":  "connects_required",
}

// collectJobFields walks a materialized object tree and picks out the
// first occurrence of every known field.
func collectJobFields(v any, found map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			if target, ok := graphKeyMap[key]; ok && child != nil {
				if _, have := found[target]; !have {
					found[target] = child
				}
			}
		}
		for _, child := range val {
			collectJobFields(child, found)
		}
	case []any:
		for _, child := range val {
			collectJobFields(child, found)
		}
	}
}

func (g *nuxtGraph) jobFields() map[string]any {
	found := map[string]any{}
	for i, v := range g.values {
		if _, ok := v.(map[string]any); !ok {
			continue
		}
		resolved, ok := g.Deref(i)
		if !ok {
			continue
		}
		collectJobFields(resolved, found)
	}
	return found
}

// extractFromGraph turns resolved graph fields into a partial record.
func extractFromGraph(doc *goquery.Document, now time.Time) (*jobstore.JobRecord, int) {
	graph, ok := parseEmbeddedGraph(doc)
	if !ok {
		return &jobstore.JobRecord{}, 0
	}
	found := graph.jobFields()
	if len(found) == 0 {
		return &jobstore.JobRecord{}, 0
	}

	record := &jobstore.JobRecord{}
	stamp := func(f jobstore.Field) { record.Stamp(f, jobstore.StrategyEmbeddedGraph, now) }
	matched := 0

	if title := asCleanString(found["title"]); title != "" {
		record.Title = title
		stamp(jobstore.FieldTitle)
		matched++
	}
	if desc := asCleanString(found["description"]); desc != "" {
		record.Description = desc
		stamp(jobstore.FieldDescription)
		matched++
	}
	if budget := graphBudget(found); !budget.IsZero() {
		record.Budget = budget
		stamp(jobstore.FieldBudget)
		matched++
	}
	if skills := graphSkills(found["skills"]); len(skills) > 0 {
		record.AddSkills(skills)
		stamp(jobstore.FieldSkills)
		matched++
	}
	if exp := jobstore.ParseExperienceLevel(asCleanString(found["experience"])); exp != jobstore.ExperienceUnknown {
		record.Experience = exp
		stamp(jobstore.FieldExperience)
		matched++
	}
	if duration := asCleanString(found["duration"]); duration != "" {
		record.Duration = duration
		stamp(jobstore.FieldDuration)
		matched++
	}
	if hours := asCleanString(found["weekly_hours"]); hours != "" {
		record.WeeklyHours = hours
		stamp(jobstore.FieldWeeklyHours)
		matched++
	}
	if posted := asCleanString(found["posted"]); posted != "" {
		record.PostedAt = parsePostedAt(posted, now)
		stamp(jobstore.FieldPostedAt)
		matched++
	}
	if country := asCleanString(found["client_country"]); country != "" {
		record.ClientCountry = country
		stamp(jobstore.FieldClientCountry)
		matched++
	}
	if spent, ok := asFloat(found["client_total_spent"]); ok {
		record.ClientTotalSpent = &spent
		stamp(jobstore.FieldClientSpent)
		matched++
	}
	if rating, ok := asFloat(found["client_rating"]); ok {
		record.ClientRating = &rating
		stamp(jobstore.FieldClientRating)
		matched++
	}
	if verified, ok := graphPaymentVerified(found["payment_verified"]); ok {
		record.PaymentVerified = &verified
		stamp(jobstore.FieldPaymentVerified)
		matched++
	}
	if count, ok := asInt(found["proposals"]); ok {
		record.Proposals = jobstore.Proposals{Count: &count}
		stamp(jobstore.FieldProposals)
		matched++
	}
	if connects, ok := asInt(found["connects_required"]); ok {
		record.ConnectsRequired = &connects
		stamp(jobstore.FieldConnectsRequired)
		matched++
	}

	return record, matched
}

func graphBudget(found map[string]any) jobstore.Budget {
	hourlyMin, hasMin := asFloat(found["hourly_min"])
	hourlyMax, hasMax := asFloat(found["hourly_max"])
	if hasMin || hasMax {
		if !hasMin {
			hourlyMin = hourlyMax
		}
		if !hasMax {
			hourlyMax = hourlyMin
		}
		return jobstore.Budget{Kind: jobstore.BudgetHourly, HourlyMin: hourlyMin, HourlyMax: hourlyMax}
	}
	if amount, ok := asFloat(found["budget_amount"]); ok && amount > 0 {
		return jobstore.Budget{Kind: jobstore.BudgetFixed, Amount: amount}
	}
	return jobstore.Budget{}
}

func graphSkills(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var skills []string
	for _, item := range items {
		switch s := item.(type) {
		case string:
			skills = append(skills, s)
		case map[string]any:
			// skill objects carry their label under "name" or
			// "prettyName"
			if name := asCleanString(s["name"]); name != "" {
				skills = append(skills, name)
			} else if name := asCleanString(s["prettyName"]); name != "" {
				skills = append(skills, name)
			}
		}
	}
	return skills
}

func graphPaymentVerified(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val == 1, true
	case string:
		return strings.EqualFold(val, "verified"), true
	}
	return false, false
}

func asCleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		return textutil.ParseMoney(n)
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		return textutil.ParseInt(n)
	}
	return 0, false
}
