package browser

import (
	"context"
	"time"
)

// Cookie is the persisted-profile representation of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

type LaunchOptions struct {
	Headless bool
	// Cookies restored into the fresh context before first navigation.
	Cookies []Cookie
}

// Surface is the browser-control collaborator: one controlled page in
// one browser context. Implementations must classify nothing, the
// session state machine does that over the raw URL/content it exposes.
type Surface interface {
	Launch(ctx context.Context, opts LaunchOptions) error
	// Goto navigates and waits for the document to be available, up to
	// timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	CurrentURL() string
	Content(ctx context.Context) (string, error)
	// Evaluate runs a script in the page and returns its result.
	Evaluate(ctx context.Context, script string) (any, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	UserAgent(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}
