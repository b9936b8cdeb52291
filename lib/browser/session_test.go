package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testHomeURL  = "https://www.upwork.com/nx/find-work/"
	testLoginURL = "https://www.upwork.com/ab/account-security/login"

	loggedInPage  = `<html><body><nav data-test="nav-user">me</nav></body></html>`
	challengePage = `<html><head><title>Just a moment...</title></head><body></body></html>`
	listingPage   = `<html><body><section data-test="job-tile-list"></section></body></html>`
)

type fakeSurface struct {
	launched  bool
	closed    bool
	headless  bool
	restored  []Cookie
	gotoErr   error
	launchErr error

	currentURL string
	// redirects maps a requested URL to where navigation actually lands.
	redirects map[string]string
	// pages maps a landed URL to its document content.
	pages map[string]string

	heights   []int
	heightIdx int
	scrolls   int

	cookies   []Cookie
	userAgent string
}

func (f *fakeSurface) Launch(ctx context.Context, opts LaunchOptions) error {
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launched = true
	f.headless = opts.Headless
	f.restored = opts.Cookies
	return nil
}

func (f *fakeSurface) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if f.gotoErr != nil {
		return f.gotoErr
	}
	if landed, ok := f.redirects[url]; ok {
		f.currentURL = landed
	} else {
		f.currentURL = url
	}
	return nil
}

func (f *fakeSurface) CurrentURL() string { return f.currentURL }

func (f *fakeSurface) Content(ctx context.Context) (string, error) {
	content, ok := f.pages[f.currentURL]
	if !ok {
		return "", fmt.Errorf("no document for %s", f.currentURL)
	}
	return content, nil
}

func (f *fakeSurface) Evaluate(ctx context.Context, script string) (any, error) {
	if script == "document.body.scrollHeight" {
		h := f.heights[f.heightIdx]
		if f.heightIdx < len(f.heights)-1 {
			f.heightIdx++
		}
		return h, nil
	}
	f.scrolls++
	return nil, nil
}

func (f *fakeSurface) Cookies(ctx context.Context) ([]Cookie, error) {
	return f.cookies, nil
}

func (f *fakeSurface) UserAgent(ctx context.Context) (string, error) {
	return f.userAgent, nil
}

func (f *fakeSurface) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func testConfig(t *testing.T) Config {
	return Config{
		HomeURL:         testHomeURL,
		AuthMarker:      `data-test="nav-user"`,
		ProfilePath:     filepath.Join(t.TempDir(), "profile.json"),
		NavigateTimeout: time.Second,
		ChallengeWait:   time.Millisecond * 50,
		ChallengePoll:   time.Millisecond * 10,
		ScrollSettle:    time.Millisecond,
	}
}

func TestSessionStartRestoresIdentity(t *testing.T) {
	surface := &fakeSurface{
		pages:     map[string]string{testHomeURL: loggedInPage},
		cookies:   []Cookie{{Name: "session", Value: "tok", Domain: ".upwork.com"}},
		userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:128.0)",
	}
	session := NewSession(surface, testConfig(t))

	err := session.Start(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, PhaseActive, session.Phase())
	require.True(t, surface.headless)

	cookies, ua := session.Identity()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Equal(t, surface.userAgent, ua)

	// identity must survive a restart
	persisted, err := LoadCookies(session.conf.ProfilePath)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
}

func TestSessionStartRequiresLogin(t *testing.T) {
	surface := &fakeSurface{
		redirects: map[string]string{testHomeURL: testLoginURL},
		pages:     map[string]string{testLoginURL: `<html><body>log in</body></html>`},
	}
	session := NewSession(surface, testConfig(t))

	err := session.Start(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingLogin, session.Phase())
}

func TestSessionStartLaunchFailure(t *testing.T) {
	surface := &fakeSurface{launchErr: errors.New("driver missing")}
	session := NewSession(surface, testConfig(t))

	err := session.Start(context.Background(), true)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, PhaseError, session.Phase())
}

func TestSessionStartBlockedOnChallenge(t *testing.T) {
	surface := &fakeSurface{
		pages: map[string]string{testHomeURL: challengePage},
	}
	session := NewSession(surface, testConfig(t))

	err := session.Start(context.Background(), true)
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, PhaseBlocked, session.Phase())
}

func TestSessionConfirmChallengeResumes(t *testing.T) {
	surface := &fakeSurface{
		pages: map[string]string{testHomeURL: challengePage},
	}
	session := NewSession(surface, testConfig(t))

	err := session.Start(context.Background(), true)
	require.Error(t, err)
	require.Equal(t, PhaseBlocked, session.Phase())

	// operator solves it in the visible browser window
	surface.pages[testHomeURL] = loggedInPage

	require.NoError(t, session.ConfirmChallenge())
	require.Equal(t, PhaseAwaitingLogin, session.Phase())

	status, err := session.CheckAuth(context.Background())
	require.NoError(t, err)
	require.Equal(t, AuthActive, status)
	require.Equal(t, PhaseActive, session.Phase())
}

func TestSessionConfirmChallengeOutsideBlocked(t *testing.T) {
	session := NewSession(&fakeSurface{}, testConfig(t))

	err := session.ConfirmChallenge()
	var phaseErr *InvalidPhaseError
	require.ErrorAs(t, err, &phaseErr)
	require.Equal(t, PhaseUninitialized, phaseErr.Phase)
}

func TestSessionNavigateRequiresActive(t *testing.T) {
	session := NewSession(&fakeSurface{}, testConfig(t))

	_, err := session.Navigate(context.Background(), "https://www.upwork.com/jobs/~01aa", 0)
	var authErr *AuthRequiredError
	require.ErrorAs(t, err, &authErr)
}

func TestSessionNavigateReturnsContent(t *testing.T) {
	jobURL := "https://www.upwork.com/jobs/~01aabbcc"
	surface := &fakeSurface{
		pages: map[string]string{
			testHomeURL: loggedInPage,
			jobURL:      listingPage,
		},
	}
	session := NewSession(surface, testConfig(t))
	require.NoError(t, session.Start(context.Background(), true))

	content, err := session.Navigate(context.Background(), jobURL, 0)
	require.NoError(t, err)
	require.Equal(t, listingPage, content)
	require.Equal(t, PhaseActive, session.Phase())
}

func TestSessionNavigateLoginRedirectExpires(t *testing.T) {
	jobURL := "https://www.upwork.com/jobs/~01aabbcc"
	surface := &fakeSurface{
		pages: map[string]string{
			testHomeURL:  loggedInPage,
			testLoginURL: `<html><body>log in</body></html>`,
		},
		redirects: map[string]string{jobURL: testLoginURL},
	}
	session := NewSession(surface, testConfig(t))
	require.NoError(t, session.Start(context.Background(), true))

	_, err := session.Navigate(context.Background(), jobURL, 0)
	var authErr *AuthRequiredError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, PhaseExpired, session.Phase())
}

func TestSessionNavigateBlockedOnChallenge(t *testing.T) {
	jobURL := "https://www.upwork.com/jobs/~01aabbcc"
	surface := &fakeSurface{
		pages: map[string]string{
			testHomeURL: loggedInPage,
			jobURL:      challengePage,
		},
	}
	session := NewSession(surface, testConfig(t))
	require.NoError(t, session.Start(context.Background(), true))

	_, err := session.Navigate(context.Background(), jobURL, 0)
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, PhaseBlocked, session.Phase())
}

func TestSessionScrollUntilStable(t *testing.T) {
	surface := &fakeSurface{
		pages:   map[string]string{testHomeURL: loggedInPage},
		heights: []int{1000, 2000, 3000, 3010, 3010},
	}
	session := NewSession(surface, testConfig(t))
	require.NoError(t, session.Start(context.Background(), true))

	effective, err := session.ScrollUntilStable(context.Background(), 10, 100)
	require.NoError(t, err)
	require.Equal(t, 2, effective)
	require.Equal(t, 4, surface.scrolls)
}

func TestSessionScrollStopsAtMaxAttempts(t *testing.T) {
	surface := &fakeSurface{
		pages:   map[string]string{testHomeURL: loggedInPage},
		heights: []int{1000, 2000, 3000, 4000, 5000, 6000},
	}
	session := NewSession(surface, testConfig(t))
	require.NoError(t, session.Start(context.Background(), true))

	effective, err := session.ScrollUntilStable(context.Background(), 3, 100)
	require.NoError(t, err)
	require.Equal(t, 3, effective)
	require.Equal(t, 3, surface.scrolls)
}

func TestSessionStopPersistsAndRestarts(t *testing.T) {
	surface := &fakeSurface{
		pages:   map[string]string{testHomeURL: loggedInPage},
		cookies: []Cookie{{Name: "session", Value: "tok"}},
	}
	conf := testConfig(t)
	session := NewSession(surface, conf)
	require.NoError(t, session.Start(context.Background(), true))

	require.NoError(t, session.Stop(context.Background()))
	require.Equal(t, PhaseUninitialized, session.Phase())
	require.True(t, surface.closed)

	persisted, err := LoadCookies(conf.ProfilePath)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	require.NoError(t, session.Start(context.Background(), true))
	require.Equal(t, PhaseActive, session.Phase())
	require.Len(t, surface.restored, 1)
}
