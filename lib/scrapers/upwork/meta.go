package upwork

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout-backend/lib/htmlutil"
	"jobscout-backend/services/jobstore"
)

// extractFromMeta reads page-level meta tags, the last resort when a
// page renders neither its data graph nor the usual markup.
func extractFromMeta(doc *goquery.Document, now time.Time) (*jobstore.JobRecord, int) {
	record := &jobstore.JobRecord{}
	matched := 0

	if title := metaContent(doc, `meta[property="og:title"]`); title != "" {
		record.Title = title
		record.Stamp(jobstore.FieldTitle, jobstore.StrategyMetaTags, now)
		matched++
	}
	if desc := metaContent(doc, `meta[name="description"]`); desc == "" {
		if desc = metaContent(doc, `meta[property="og:description"]`); desc != "" {
			record.Description = desc
			record.Stamp(jobstore.FieldDescription, jobstore.StrategyMetaTags, now)
			matched++
		}
	} else {
		record.Description = desc
		record.Stamp(jobstore.FieldDescription, jobstore.StrategyMetaTags, now)
		matched++
	}
	if pageURL := metaContent(doc, `meta[property="og:url"]`); pageURL != "" {
		record.URL = CanonicalURL(pageURL)
		if record.ID == "" {
			record.ID = JobIDFromURL(pageURL)
		}
		matched++
	}

	return record, matched
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return htmlutil.CleanText(content)
}
