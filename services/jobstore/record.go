package jobstore

import (
	"strings"
	"time"
)

// Strategy identifies which extraction pass produced a field value.
// Lower values are more authoritative: the embedded graph reflects the
// source's own data model, selectors and meta tags only reflect
// presentation markup, and tile values are a reduced listing-page pass.
type Strategy int

const (
	StrategyUnknown       Strategy = 0
	StrategyEmbeddedGraph Strategy = 1
	StrategySelectors     Strategy = 2
	StrategyMetaTags      Strategy = 3
	StrategyTile          Strategy = 4
)

func (s Strategy) String() string {
	switch s {
	case StrategyEmbeddedGraph:
		return "embedded_graph"
	case StrategySelectors:
		return "selectors"
	case StrategyMetaTags:
		return "meta_tags"
	case StrategyTile:
		return "tile"
	}
	return "unknown"
}

// Priority orders strategies for merge decisions. Unknown sorts last.
func (s Strategy) Priority() int {
	if s == StrategyUnknown {
		return int(StrategyTile) + 1
	}
	return int(s)
}

type Field string

const (
	FieldTitle            Field = "title"
	FieldDescription      Field = "description"
	FieldBudget           Field = "budget"
	FieldSkills           Field = "skills"
	FieldExperience       Field = "experience_level"
	FieldProposals        Field = "proposals"
	FieldPostedAt         Field = "posted_at"
	FieldDuration         Field = "duration"
	FieldWeeklyHours      Field = "weekly_hours"
	FieldClientCountry    Field = "client_country"
	FieldClientSpent      Field = "client_total_spent"
	FieldClientRating     Field = "client_rating"
	FieldPaymentVerified  Field = "payment_verified"
	FieldConnectsRequired Field = "connects_required"
)

// Origin records which strategy supplied a field value and when.
type Origin struct {
	Strategy   Strategy  `json:"strategy"`
	ObservedAt time.Time `json:"observed_at"`
}

type BudgetKind string

const (
	BudgetUnknown BudgetKind = ""
	BudgetHourly  BudgetKind = "hourly"
	BudgetFixed   BudgetKind = "fixed"
)

// Budget is a tagged union: Hourly carries a rate range, Fixed carries
// a single amount.
type Budget struct {
	Kind      BudgetKind `json:"kind"`
	HourlyMin float64    `json:"hourly_min,omitempty"`
	HourlyMax float64    `json:"hourly_max,omitempty"`
	Amount    float64    `json:"amount,omitempty"`
}

func (b Budget) IsZero() bool {
	return b.Kind == BudgetUnknown
}

type ExperienceLevel string

const (
	ExperienceUnknown      ExperienceLevel = ""
	ExperienceEntry        ExperienceLevel = "Entry"
	ExperienceIntermediate ExperienceLevel = "Intermediate"
	ExperienceExpert       ExperienceLevel = "Expert"
)

// ParseExperienceLevel maps free-form tier text ("Expert", "Entry
// level", "intermediate") onto the enum. Unrecognized text maps to
// Unknown rather than failing.
func ParseExperienceLevel(text string) ExperienceLevel {
	switch {
	case strings.Contains(strings.ToLower(text), "entry"):
		return ExperienceEntry
	case strings.Contains(strings.ToLower(text), "intermediate"):
		return ExperienceIntermediate
	case strings.Contains(strings.ToLower(text), "expert"):
		return ExperienceExpert
	}
	return ExperienceUnknown
}

// Proposals is either an exact count or a bucketed range string such
// as "50+", whichever the page exposed.
type Proposals struct {
	Count  *int   `json:"count,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

func (p Proposals) IsZero() bool {
	return p.Count == nil && p.Bucket == ""
}

// PostedAt keeps the raw relative string ("3 hours ago") alongside a
// best-effort parsed timestamp, since the raw form is all some pages
// ever expose.
type PostedAt struct {
	Raw    string    `json:"raw,omitempty"`
	Parsed time.Time `json:"parsed,omitempty"`
}

func (p PostedAt) IsZero() bool {
	return p.Raw == "" && p.Parsed.IsZero()
}

// JobRecord is the central entity. A field is either absent (zero
// value, never observed) or present; empty strings and empty slices
// count as absent for merge purposes. Provenance holds entries only
// for present fields.
type JobRecord struct {
	ID  string `json:"id"`
	URL string `json:"url"`

	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Budget      Budget          `json:"budget,omitempty"`
	Skills      []string        `json:"skills,omitempty"`
	Experience  ExperienceLevel `json:"experience_level,omitempty"`
	Proposals   Proposals       `json:"proposals,omitempty"`
	PostedAt    PostedAt        `json:"posted_at,omitempty"`
	Duration    string          `json:"duration,omitempty"`
	WeeklyHours string          `json:"weekly_hours,omitempty"`

	ClientCountry    string   `json:"client_country,omitempty"`
	ClientTotalSpent *float64 `json:"client_total_spent,omitempty"`
	ClientRating     *float64 `json:"client_rating,omitempty"`
	PaymentVerified  *bool    `json:"payment_verified,omitempty"`
	ConnectsRequired *int     `json:"connects_required,omitempty"`

	Source      string    `json:"source,omitempty"`
	SearchQuery string    `json:"search_query,omitempty"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`

	Provenance map[Field]Origin `json:"field_provenance,omitempty"`
}

// NormalizeSkill lowercases and collapses a skill tag so set union
// does not depend on page casing.
func NormalizeSkill(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AddSkills unions normalized skills into the record, preserving
// first-seen order.
func (r *JobRecord) AddSkills(skills []string) (added int) {
	seen := map[string]bool{}
	for _, s := range r.Skills {
		seen[s] = true
	}
	for _, s := range skills {
		n := NormalizeSkill(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		r.Skills = append(r.Skills, n)
		added++
	}
	return added
}

// Stamp records provenance for a present field. Absent fields never
// carry provenance.
func (r *JobRecord) Stamp(f Field, strategy Strategy, at time.Time) {
	if r.Provenance == nil {
		r.Provenance = map[Field]Origin{}
	}
	r.Provenance[f] = Origin{Strategy: strategy, ObservedAt: at}
}

func (r *JobRecord) origin(f Field) Origin {
	if r.Provenance == nil {
		return Origin{}
	}
	return r.Provenance[f]
}

// Clone deep-copies a record so merges never alias inputs.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Skills = append([]string(nil), r.Skills...)
	if r.ClientTotalSpent != nil {
		v := *r.ClientTotalSpent
		out.ClientTotalSpent = &v
	}
	if r.ClientRating != nil {
		v := *r.ClientRating
		out.ClientRating = &v
	}
	if r.PaymentVerified != nil {
		v := *r.PaymentVerified
		out.PaymentVerified = &v
	}
	if r.ConnectsRequired != nil {
		v := *r.ConnectsRequired
		out.ConnectsRequired = &v
	}
	if r.Proposals.Count != nil {
		v := *r.Proposals.Count
		out.Proposals.Count = &v
	}
	if r.Provenance != nil {
		out.Provenance = make(map[Field]Origin, len(r.Provenance))
		for k, v := range r.Provenance {
			out.Provenance[k] = v
		}
	}
	return &out
}
