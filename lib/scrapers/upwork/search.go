package upwork

import (
	"fmt"
	"net/url"
	"strings"
)

var sortOptions = map[string]string{
	"relevance":       "relevance+desc",
	"recency":         "recency",
	"client_spending": "client_total_charge+desc",
	"client_rating":   "client_rating+desc",
}

var experienceTiers = map[string]string{
	"entry":        "1",
	"intermediate": "2",
	"expert":       "3",
}

var jobTypes = map[string]string{
	"hourly": "0",
	"fixed":  "1",
}

var projectDurations = map[string]string{
	"week":     "week",
	"month":    "month",
	"semester": "semester",
	"ongoing":  "ongoing",
}

var workloadOptions = map[string]string{
	"less_than_30": "as_needed",
	"more_than_30": "full_time",
}

// Category uids are stable site-side identifiers, not indexes.
var categories = map[string]string{
	"Web, Mobile & Software Dev": "531770282580668418",
	"IT & Networking":            "531770282580668419",
	"Data Science & Analytics":   "531770282580668420",
	"Design & Creative":          "531770282580668421",
	"Sales & Marketing":          "531770282580668422",
	"Writing":                    "531770282580668423",
	"Translation":                "531770282580668424",
	"Admin Support":              "531770282580668425",
	"Customer Service":           "531770282580668426",
	"Accounting & Consulting":    "531770282580668427",
	"Legal":                      "531770282580668428",
	"Engineering & Architecture": "531770282584862722",
}

// SearchParams describes one job search. Zero values mean "no filter".
type SearchParams struct {
	Query    string
	Category string
	// ExperienceLevels holds any of "entry", "intermediate", "expert".
	ExperienceLevels []string
	// JobType is "hourly" or "fixed".
	JobType       string
	BudgetMin     int
	BudgetMax     int
	HourlyRateMin int
	HourlyRateMax int
	// ClientHires is a bucket string such as "1-9" or "10+".
	ClientHires string
	// HoursPerWeek is "less_than_30" or "more_than_30".
	HoursPerWeek string
	// ProjectLength is "week", "month", "semester" or "ongoing".
	ProjectLength string
	SortBy        string
	MaxResults    int
	Page          int
}

func (p SearchParams) queryValues() url.Values {
	values := url.Values{}

	if p.Query != "" {
		values.Set("q", p.Query)
	}
	if sort, ok := sortOptions[p.SortBy]; ok {
		values.Set("sort", sort)
	}
	if p.MaxResults > 0 {
		values.Set("per_page", fmt.Sprint(min(p.MaxResults, 50)))
	}
	if p.Page > 1 {
		values.Set("page", fmt.Sprint(p.Page))
	}
	if t, ok := jobTypes[p.JobType]; ok {
		values.Set("t", t)
	}

	var tiers []string
	for _, level := range p.ExperienceLevels {
		if tier, ok := experienceTiers[strings.TrimSpace(level)]; ok {
			tiers = append(tiers, tier)
		}
	}
	if len(tiers) > 0 {
		values.Set("contractor_tier", strings.Join(tiers, ","))
	}

	if p.BudgetMin > 0 || p.BudgetMax > 0 {
		values.Set("amount", rangeParam(p.BudgetMin, p.BudgetMax))
	}
	if p.HourlyRateMin > 0 || p.HourlyRateMax > 0 {
		values.Set("hourly_rate", rangeParam(p.HourlyRateMin, p.HourlyRateMax))
	}
	if uid, ok := categories[p.Category]; ok {
		values.Set("category2_uid", uid)
	}
	if p.ClientHires != "" {
		values.Set("client_hires", p.ClientHires)
	}
	if duration, ok := projectDurations[p.ProjectLength]; ok {
		values.Set("duration_v3", duration)
	}
	if workload, ok := workloadOptions[p.HoursPerWeek]; ok {
		values.Set("workload", workload)
	}

	return values
}

// SearchURL builds the search results page address for these params.
func (p SearchParams) SearchURL() string {
	return SearchBaseURL + "?" + p.queryValues().Encode()
}

func rangeParam(low, high int) string {
	out := "-"
	if low > 0 {
		out = fmt.Sprint(low) + out
	}
	if high > 0 {
		out += fmt.Sprint(high)
	}
	return out
}
