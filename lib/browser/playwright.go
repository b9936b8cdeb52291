package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Firefox draws less anti-bot attention than headless Chromium.
const (
	viewportWidth  = 1366
	viewportHeight = 768
)

// PlaywrightSurface drives a real Firefox instance through playwright.
type PlaywrightSurface struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

var _ Surface = (*PlaywrightSurface)(nil)

func NewPlaywrightSurface() *PlaywrightSurface {
	return &PlaywrightSurface{}
}

func (s *PlaywrightSurface) Launch(ctx context.Context, opts LaunchOptions) error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright driver: %w", err)
	}
	s.pw = pw

	browser, err := pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		s.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = browser

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	})
	if err != nil {
		s.browser.Close()
		s.pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	s.context = browserCtx

	if len(opts.Cookies) > 0 {
		if err := browserCtx.AddCookies(toOptionalCookies(opts.Cookies)); err != nil {
			return fmt.Errorf("failed to restore cookies: %w", err)
		}
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page
	return nil
}

func (s *PlaywrightSurface) Goto(ctx context.Context, url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (s *PlaywrightSurface) CurrentURL() string {
	if s.page == nil {
		return ""
	}
	return s.page.URL()
}

func (s *PlaywrightSurface) Content(ctx context.Context) (string, error) {
	return s.page.Content()
}

func (s *PlaywrightSurface) Evaluate(ctx context.Context, expression string) (any, error) {
	return s.page.Evaluate(expression)
}

func (s *PlaywrightSurface) Cookies(ctx context.Context) ([]Cookie, error) {
	pwCookies, err := s.context.Cookies()
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, len(pwCookies))
	for i, c := range pwCookies {
		cookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookies[i].SameSite = string(*c.SameSite)
		}
	}
	return cookies, nil
}

func (s *PlaywrightSurface) UserAgent(ctx context.Context) (string, error) {
	v, err := s.page.Evaluate("navigator.userAgent")
	if err != nil {
		return "", err
	}
	ua, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected user agent value %v", v)
	}
	return ua, nil
}

func (s *PlaywrightSurface) Close(ctx context.Context) error {
	var errs []error
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	s.page = nil
	s.context = nil
	s.browser = nil
	s.pw = nil
	return errors.Join(errs...)
}

func toOptionalCookies(cookies []Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, len(cookies))
	for i, c := range cookies {
		oc := playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: playwright.String(c.Domain),
			Path:   playwright.String(c.Path),
		}
		if c.Expires > 0 {
			oc.Expires = playwright.Float(c.Expires)
		}
		if c.HTTPOnly {
			oc.HttpOnly = playwright.Bool(true)
		}
		if c.Secure {
			oc.Secure = playwright.Bool(true)
		}
		switch c.SameSite {
		case "Lax":
			oc.SameSite = playwright.SameSiteAttributeLax
		case "Strict":
			oc.SameSite = playwright.SameSiteAttributeStrict
		case "None":
			oc.SameSite = playwright.SameSiteAttributeNone
		}
		out[i] = oc
	}
	return out
}
