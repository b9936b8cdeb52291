package upwork

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const (
	BaseURL        = "https://www.upwork.com"
	LoginURL       = BaseURL + "/ab/account-security/login"
	BestMatchesURL = BaseURL + "/nx/find-work/best-matches"
	SearchBaseURL  = BaseURL + "/nx/search/jobs/"
)

// Job ids look like ~01f1e825a90a3f8b21 and show up in several URL
// shapes: /jobs/~0ID, /jobs/Some_Title_~0ID/, /details/~0ID.
var jobIDPattern = regexp.MustCompile(`(~[0-9a-f]+)`)

func JobIDFromURL(rawURL string) string {
	return jobIDPattern.FindString(rawURL)
}

func DetailURL(id string) string {
	return BaseURL + "/jobs/" + id
}

// AbsoluteURL resolves a page-relative href against the site base.
func AbsoluteURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// CanonicalURL normalizes a job URL so the same job never caches twice
// under cosmetically different addresses.
func CanonicalURL(rawURL string) string {
	normalized, err := purell.NormalizeURLString(
		rawURL,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	if err != nil {
		return rawURL
	}
	return normalized
}
