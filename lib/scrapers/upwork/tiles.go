package upwork

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobscout-backend/lib/htmlutil"
	"jobscout-backend/services/jobstore"
)

// Listing markup changes often; candidate container selectors are
// ordered newest first and the first one with any match wins for the
// whole page.
var tileContainerSelectors = []string{
	`[data-test="job-tile-list"] > section`,
	`article.job-tile`,
	`article[data-test="JobTile"]`,
	`div[data-test="job-tile-list"] article`,
	`section.air3-card-section`,
	`section.up-card-section`,
	`div[class*="job-tile"]`,
}

var tileTitleLinkSelectors = []string{
	`[data-test="job-tile-title"] a`,
	`h2 a`,
	`h3 a`,
	`a[href*="/jobs/"][href*="~"]`,
	`a[href*="/details/"][href*="~"]`,
}

// TileResult is one listing page's worth of extracted tiles.
type TileResult struct {
	Records []*jobstore.JobRecord
	// Skipped counts tiles whose markup did not yield a usable id.
	Skipped int
	// Selector is the container selector that matched, empty when none
	// did.
	Selector string
	// ObservedMarkers lists the data-test attribute values present on
	// a page where no selector matched, for selector maintenance.
	ObservedMarkers []string
}

// ExtractTiles pulls every job tile off a listing page. Tiles are
// independent: one tile's broken markup is counted and skipped without
// affecting its siblings.
func ExtractTiles(html, source string, now time.Time) TileResult {
	var result TileResult

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return result
	}

	var tiles *goquery.Selection
	for _, selector := range tileContainerSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			tiles = sel
			result.Selector = selector
			break
		}
	}
	if tiles == nil {
		result.ObservedMarkers = htmlutil.ObservedMarkers(doc, "data-test", 50)
		return result
	}

	tiles.Each(func(_ int, tile *goquery.Selection) {
		record := extractTile(tile, source, now)
		if record == nil {
			result.Skipped++
			return
		}
		result.Records = append(result.Records, record)
	})

	return result
}

func extractTile(tile *goquery.Selection, source string, now time.Time) *jobstore.JobRecord {
	var titleLink *goquery.Selection
	for _, selector := range tileTitleLinkSelectors {
		sel := tile.Find(selector).First()
		if sel.Length() > 0 {
			titleLink = sel
			break
		}
	}
	if titleLink == nil {
		return nil
	}

	href, _ := titleLink.Attr("href")
	id := JobIDFromURL(href)
	if id == "" {
		return nil
	}

	record := &jobstore.JobRecord{
		ID:        id,
		URL:       CanonicalURL(AbsoluteURL(href)),
		Source:    source,
		FetchedAt: now,
	}
	stamp := func(f jobstore.Field) { record.Stamp(f, jobstore.StrategyTile, now) }

	if title := htmlutil.SelectionText(titleLink); title != "" {
		record.Title = title
		stamp(jobstore.FieldTitle)
	}

	if desc := firstTileText(tile,
		`[data-test="job-description-text"]`,
		`[data-test="job-description-line-clamp"]`,
		`p[class*="description"]`,
	); desc != "" {
		record.Description = desc
		stamp(jobstore.FieldDescription)
	}

	if budgetText := firstTileText(tile,
		`[data-test="job-type"]`,
		`[data-test="job-budget"]`,
		`[data-test="budget"]`,
		`span[class*="budget"]`,
	); budgetText != "" {
		if budget := parseBudgetText(budgetText); !budget.IsZero() {
			record.Budget = budget
			stamp(jobstore.FieldBudget)
		}
	}

	var skills []string
	for _, selector := range []string{
		`a[data-test="attr-item"]`,
		`[data-test="token-container"] a`,
		`.air3-token`,
		`span[class*="skill"]`,
	} {
		sel := tile.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		sel.Each(func(_ int, s *goquery.Selection) {
			if text := htmlutil.SelectionText(s); text != "" {
				skills = append(skills, text)
			}
		})
		break
	}
	if record.AddSkills(skills) > 0 {
		stamp(jobstore.FieldSkills)
	}

	if tierText := firstTileText(tile,
		`[data-test="contractor-tier"]`,
		`[data-test="experience-level"]`,
	); tierText != "" {
		if exp := jobstore.ParseExperienceLevel(tierText); exp != jobstore.ExperienceUnknown {
			record.Experience = exp
			stamp(jobstore.FieldExperience)
		}
	}

	if proposalText := firstTileText(tile, `[data-test="proposals"]`); proposalText != "" {
		record.Proposals = jobstore.Proposals{Bucket: proposalText}
		stamp(jobstore.FieldProposals)
	}

	if posted := findPostedText(tile); posted != "" {
		record.PostedAt = parsePostedAt(posted, now)
		stamp(jobstore.FieldPostedAt)
	}

	return record
}

func firstTileText(tile *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		sel := tile.Find(selector).First()
		if sel.Length() > 0 {
			if text := htmlutil.SelectionText(sel); text != "" {
				return text
			}
		}
	}
	return ""
}
