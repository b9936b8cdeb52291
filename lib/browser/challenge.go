package browser

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// interstitial pages show these before any interactive challenge
var challengeIndicators = []string{
	"Just a moment...",
	"Checking your browser",
	"cf-challenge",
	"challenge-platform",
	"turnstile",
}

var challengeSelectors = []struct {
	selector string
	kind     string
}{
	{"iframe[src*='hcaptcha']", "hcaptcha"},
	{"iframe[src*='recaptcha']", "recaptcha"},
	{"#cf-turnstile", "cloudflare_turnstile"},
	{".cf-challenge", "cloudflare_challenge"},
	{"[data-testid='challenge']", "site_challenge"},
}

var loginPathFragments = []string{"/login", "/account-security"}

// DetectChallenge classifies anti-bot challenge content. Returns the
// challenge kind and whether one was found. Malformed content is
// treated as no challenge, navigation-level errors cover that case.
func DetectChallenge(content string) (string, bool) {
	for _, indicator := range challengeIndicators {
		if strings.Contains(content, indicator) {
			kind := "interstitial"
			if sel, ok := detectChallengeElement(content); ok {
				kind = sel
			}
			return kind, true
		}
	}
	if kind, ok := detectChallengeElement(content); ok {
		return kind, true
	}
	return "", false
}

func detectChallengeElement(content string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", false
	}
	for _, check := range challengeSelectors {
		if doc.Find(check.selector).Length() > 0 {
			return check.kind, true
		}
	}
	return "", false
}

// IsLoginURL reports whether a URL points at the login surface.
func IsLoginURL(url string) bool {
	for _, fragment := range loginPathFragments {
		if strings.Contains(url, fragment) {
			return true
		}
	}
	return false
}

// awaitChallengeResolution polls page content until the challenge
// clears, the wait budget runs out, or ctx is cancelled. The wait is
// always bounded; an unresolved challenge is reported, never blocked
// on indefinitely.
func awaitChallengeResolution(ctx context.Context, surface Surface, wait, poll time.Duration) (resolved bool, kind string, err error) {
	deadline := time.Now().Add(wait)
	for {
		content, err := surface.Content(ctx)
		if err != nil {
			return false, "", err
		}
		k, found := DetectChallenge(content)
		if !found {
			return true, "", nil
		}
		kind = k

		if time.Now().After(deadline) {
			return false, kind, nil
		}
		select {
		case <-ctx.Done():
			return false, kind, ctx.Err()
		case <-time.After(poll):
		}
	}
}
