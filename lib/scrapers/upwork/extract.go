package upwork

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout-backend/services/jobstore"
)

// Diagnostics reports how many fields each extraction pass supplied,
// for logging and selector maintenance. A page where every count is
// zero extracted nothing but is still not an error.
type Diagnostics struct {
	GraphFields    int `json:"graph_fields"`
	SelectorFields int `json:"selector_fields"`
	MetaFields     int `json:"meta_fields"`
}

// strategies during extraction combine strictly by priority: a later
// pass only fills fields the earlier passes left absent.
var combinePolicy = jobstore.Policy{PreferRicher: false}

// ExtractDetail produces the richest record one detail page allows.
// The embedded data graph is most authoritative, attribute selectors
// second, meta tags last. Strategy failures degrade to fewer fields,
// never to an error.
func ExtractDetail(html, pageURL string, now time.Time) (*jobstore.JobRecord, Diagnostics) {
	var diag Diagnostics

	record := &jobstore.JobRecord{
		ID:        JobIDFromURL(pageURL),
		URL:       CanonicalURL(pageURL),
		FetchedAt: now,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record, diag
	}

	var graphRecord, selectorRecord, metaRecord *jobstore.JobRecord
	graphRecord, diag.GraphFields = extractFromGraph(doc, now)
	selectorRecord, diag.SelectorFields = extractFromSelectors(doc, now)
	metaRecord, diag.MetaFields = extractFromMeta(doc, now)

	merged := jobstore.Merge(graphRecord, selectorRecord, combinePolicy)
	merged = jobstore.Merge(merged, metaRecord, combinePolicy)

	if record.URL != "" {
		merged.URL = record.URL
	}
	if record.ID != "" {
		merged.ID = record.ID
	} else if merged.ID == "" {
		merged.ID = JobIDFromURL(merged.URL)
	}
	merged.FetchedAt = now
	return merged, diag
}
