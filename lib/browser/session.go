package browser

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/browser")

type AuthStatus string

const (
	AuthUnknown  AuthStatus = "unknown"
	AuthRequired AuthStatus = "auth_required"
	AuthActive   AuthStatus = "active"
)

type Config struct {
	// HomeURL is the authenticated landing page navigated to on Start
	// to probe whether the persisted identity is still valid.
	HomeURL string
	// AuthMarker is a content fragment only present when logged in.
	AuthMarker string
	// ProfilePath is where the cookie identity is persisted.
	ProfilePath string

	NavigateTimeout time.Duration
	ChallengeWait   time.Duration
	ChallengePoll   time.Duration
	ScrollSettle    time.Duration
}

func (c Config) withDefaults() Config {
	if c.NavigateTimeout == 0 {
		c.NavigateTimeout = time.Second * 30
	}
	if c.ChallengeWait == 0 {
		c.ChallengeWait = time.Second * 30
	}
	if c.ChallengePoll == 0 {
		c.ChallengePoll = time.Second * 2
	}
	if c.ScrollSettle == 0 {
		c.ScrollSettle = time.Millisecond * 1500
	}
	return c
}

// Session owns one browser surface and its persisted identity. All
// navigation-dependent operations serialize behind its lock; only one
// may be in flight at a time.
type Session struct {
	mu      sync.Mutex
	surface Surface
	conf    Config

	phase          Phase
	cookies        []Cookie
	userAgent      string
	challengeKind  string
	lastActivityAt time.Time
}

func NewSession(surface Surface, conf Config) *Session {
	return &Session{
		surface: surface,
		conf:    conf.withDefaults(),
		phase:   PhaseUninitialized,
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// Identity returns the captured cookies and user agent of the
// authenticated session, for handing off to an HTTP fetcher.
func (s *Session) Identity() ([]Cookie, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cookies := append([]Cookie(nil), s.cookies...)
	return cookies, s.userAgent
}

// Start launches the browser with the persisted identity profile and
// probes the authenticated landing page. Valid from Uninitialized,
// Expired and Error; a session that is already Active is left alone.
func (s *Session) Start(ctx context.Context, headless bool) error {
	ctx, span := tracer.Start(ctx, "session:Start")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseActive || s.phase == PhaseAwaitingLogin {
		span.AddEvent("session already running")
		return nil
	}

	s.phase = PhaseLaunching

	cookies, err := LoadCookies(s.conf.ProfilePath)
	if err != nil {
		slog.WarnContext(ctx, "failed to load cookie profile, starting fresh",
			"path", s.conf.ProfilePath, "err", err)
	}

	err = s.surface.Launch(ctx, LaunchOptions{Headless: headless, Cookies: cookies})
	if err != nil {
		s.phase = PhaseError
		span.RecordError(err)
		span.SetStatus(codes.Error, "browser launch failed")
		return &LaunchError{Phase: s.phase, Err: err}
	}

	err = s.surface.Goto(ctx, s.conf.HomeURL, s.conf.NavigateTimeout)
	if err != nil {
		// one retry with a doubled budget, slow first paints are common
		// right after launch
		err = s.surface.Goto(ctx, s.conf.HomeURL, s.conf.NavigateTimeout*2)
	}
	if err != nil {
		s.phase = PhaseError
		span.RecordError(err)
		span.SetStatus(codes.Error, "initial navigation failed")
		return &LaunchError{Phase: s.phase, Err: err}
	}

	resolved, kind, err := awaitChallengeResolution(ctx, s.surface, s.conf.ChallengeWait, s.conf.ChallengePoll)
	if err != nil {
		s.phase = PhaseError
		span.RecordError(err)
		span.SetStatus(codes.Error, "challenge wait failed")
		return err
	}
	if !resolved {
		s.phase = PhaseBlocked
		s.challengeKind = kind
		span.SetAttributes(attribute.String("challenge", kind))
		return &BlockedError{Phase: s.phase, Challenge: kind}
	}

	if IsLoginURL(s.surface.CurrentURL()) {
		s.phase = PhaseAwaitingLogin
		slog.InfoContext(ctx, "no valid session, login required", "url", s.surface.CurrentURL())
		return nil
	}

	if err := s.captureIdentity(ctx); err != nil {
		slog.WarnContext(ctx, "failed to capture session identity", "err", err)
	}
	s.phase = PhaseActive
	s.lastActivityAt = time.Now()
	slog.InfoContext(ctx, "session restored", "cookies", len(s.cookies))
	return nil
}

// CheckAuth inspects the current page. Landing on a login path means
// AwaitingLogin; the authenticated marker means Active; anything else
// leaves the phase unchanged and reports Unknown.
func (s *Session) CheckAuth(ctx context.Context) (AuthStatus, error) {
	ctx, span := tracer.Start(ctx, "session:CheckAuth")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseUninitialized || s.phase == PhaseError {
		return AuthUnknown, &InvalidPhaseError{Phase: s.phase, Op: "CheckAuth"}
	}

	if IsLoginURL(s.surface.CurrentURL()) {
		s.phase = PhaseAwaitingLogin
		return AuthRequired, nil
	}

	content, err := s.surface.Content(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page content")
		return AuthUnknown, err
	}

	if _, found := DetectChallenge(content); found {
		resolved, kind, err := awaitChallengeResolution(ctx, s.surface, s.conf.ChallengeWait, s.conf.ChallengePoll)
		if err != nil {
			return AuthUnknown, err
		}
		if !resolved {
			s.phase = PhaseBlocked
			s.challengeKind = kind
			return AuthUnknown, &BlockedError{Phase: s.phase, Challenge: kind}
		}
	} else if s.conf.AuthMarker != "" && !strings.Contains(content, s.conf.AuthMarker) {
		// no marker and no login redirect: can't tell, leave as-is
		return AuthUnknown, nil
	}

	if err := s.captureIdentity(ctx); err != nil {
		slog.WarnContext(ctx, "failed to capture session identity", "err", err)
	}
	s.phase = PhaseActive
	s.lastActivityAt = time.Now()
	return AuthActive, nil
}

// ConfirmChallenge is the external human-in-the-loop signal that a
// blocking challenge has been dealt with. It re-arms the session so
// the next CheckAuth can verify.
func (s *Session) ConfirmChallenge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseBlocked {
		return &InvalidPhaseError{Phase: s.phase, Op: "ConfirmChallenge"}
	}
	s.phase = PhaseAwaitingLogin
	s.challengeKind = ""
	return nil
}

// Navigate fetches a rendered document. Only valid from Active; the
// returned errors classify the landing page (blocked / login) so the
// caller can decide on remediation.
func (s *Session) Navigate(ctx context.Context, targetURL string, timeout time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "session:Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", targetURL))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		span.SetStatus(codes.Error, "navigate outside active phase")
		return "", &AuthRequiredError{Phase: s.phase, URL: targetURL}
	}
	if timeout == 0 {
		timeout = s.conf.NavigateTimeout
	}

	err := s.surface.Goto(ctx, targetURL, timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return "", err
	}
	s.lastActivityAt = time.Now()

	resolved, kind, err := awaitChallengeResolution(ctx, s.surface, s.conf.ChallengeWait, s.conf.ChallengePoll)
	if err != nil {
		return "", err
	}
	if !resolved {
		s.phase = PhaseBlocked
		s.challengeKind = kind
		span.SetAttributes(attribute.String("challenge", kind))
		return "", &BlockedError{Phase: s.phase, Challenge: kind}
	}

	if IsLoginURL(s.surface.CurrentURL()) {
		s.phase = PhaseExpired
		span.SetStatus(codes.Error, "redirected to login")
		return "", &AuthRequiredError{Phase: s.phase, URL: s.surface.CurrentURL()}
	}

	content, err := s.surface.Content(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read content")
		return "", err
	}
	return content, nil
}

// PageContent re-reads the current document without navigating, used
// after scrolling has grown the page.
func (s *Session) PageContent(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return "", &AuthRequiredError{Phase: s.phase}
	}
	return s.surface.Content(ctx)
}

// ScrollUntilStable repeatedly scrolls to the bottom of the page until
// the document height stops growing across two consecutive attempts or
// maxAttempts is reached. Returns the number of scrolls that produced
// growth of at least growthThreshold pixels; that count is a
// diagnostic, a short page is not an error.
func (s *Session) ScrollUntilStable(ctx context.Context, maxAttempts, growthThreshold int) (int, error) {
	ctx, span := tracer.Start(ctx, "session:ScrollUntilStable")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return 0, &AuthRequiredError{Phase: s.phase}
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	effective := 0
	stableStreak := 0
	prevHeight, err := s.documentHeight(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read document height")
		return 0, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := s.surface.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scroll failed")
			return effective, err
		}

		select {
		case <-ctx.Done():
			return effective, ctx.Err()
		case <-time.After(s.conf.ScrollSettle):
		}

		height, err := s.documentHeight(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read document height")
			return effective, err
		}

		slog.DebugContext(ctx, "scroll iteration",
			"attempt", attempt+1, "prev_height", prevHeight, "height", height)

		if height-prevHeight >= growthThreshold {
			effective++
			stableStreak = 0
		} else {
			stableStreak++
			if stableStreak >= 2 {
				break
			}
		}
		prevHeight = height
	}

	s.lastActivityAt = time.Now()
	span.SetAttributes(attribute.Int("effective_scrolls", effective))
	return effective, nil
}

// Stop persists the identity profile and closes the browser. The
// session can be started again afterwards.
func (s *Session) Stop(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:Stop")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseUninitialized {
		return nil
	}

	if cookies, err := s.surface.Cookies(ctx); err == nil && len(cookies) > 0 {
		s.cookies = cookies
		if err := SaveCookies(s.conf.ProfilePath, cookies); err != nil {
			slog.WarnContext(ctx, "failed to persist cookie profile", "err", err)
		}
	}

	err := s.surface.Close(ctx)
	s.phase = PhaseUninitialized
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close browser")
		return err
	}
	return nil
}

func (s *Session) captureIdentity(ctx context.Context) error {
	cookies, err := s.surface.Cookies(ctx)
	if err != nil {
		return err
	}
	ua, err := s.surface.UserAgent(ctx)
	if err != nil {
		return err
	}
	s.cookies = cookies
	s.userAgent = ua
	if s.conf.ProfilePath != "" {
		return SaveCookies(s.conf.ProfilePath, cookies)
	}
	return nil
}

func (s *Session) documentHeight(ctx context.Context) (int, error) {
	v, err := s.surface.Evaluate(ctx, "document.body.scrollHeight")
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, nil
}
