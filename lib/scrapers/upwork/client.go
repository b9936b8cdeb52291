package upwork

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"jobscout-backend/lib/browser"
	"jobscout-backend/lib/restyutil"
	"jobscout-backend/lib/telemetry"
)

var tracer = otel.Tracer("lib/scrapers/upwork")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput dumps every request/response pair of clients
// created afterwards, for debugging extraction failures.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client fetches rendered-enough pages over plain HTTP by reusing the
// browser session's cookies and user agent, which is much cheaper than
// navigating the browser for every detail page.
type Client struct {
	Http *resty.Client

	// jitter bounds in milliseconds between consecutive requests
	jitterMin int
	jitterMax int
}

type ClientOptions struct {
	Cookies   []browser.Cookie
	UserAgent string
	// JitterMin/JitterMax bound the random pre-request delay in
	// milliseconds. Zero values mean 500-2000ms.
	JitterMin int
	JitterMax int
}

func NewClient(opts ClientOptions) (*Client, error) {
	client := resty.New()
	client.SetBaseURL(BaseURL)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)

	for _, c := range opts.Cookies {
		client.SetCookie(&http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}

	client.SetTimeout(time.Second * 30)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Second * 2)
	client.SetRetryMaxWaitTime(time.Second * 15)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	if restyInstrumentOutput != nil {
		restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)
	} else {
		telemetry.InstrumentResty(client, "scrapers/upwork/http")
	}

	jitterMin, jitterMax := opts.JitterMin, opts.JitterMax
	if jitterMax == 0 {
		jitterMin, jitterMax = 500, 2000
	}

	return &Client{
		Http:      client,
		jitterMin: jitterMin,
		jitterMax: jitterMax,
	}, nil
}

// FetchPage performs one GET and classifies the landing page: a
// challenge interstitial or a login redirect comes back as the
// matching typed error so callers can fall back to the browser.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "FetchPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	if err := c.jitter(ctx); err != nil {
		return "", err
	}

	res, err := c.Http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return "", err
	}

	landedURL := pageURL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		landedURL = res.RawResponse.Request.URL.String()
	}
	if browser.IsLoginURL(landedURL) {
		span.SetStatus(codes.Error, "redirected to login")
		return "", &browser.AuthRequiredError{Phase: browser.PhaseExpired, URL: landedURL}
	}

	body := res.String()
	if kind, found := browser.DetectChallenge(body); found {
		span.SetStatus(codes.Error, "challenge interstitial")
		return "", &browser.BlockedError{Phase: browser.PhaseBlocked, Challenge: kind}
	}
	if res.StatusCode() != http.StatusOK {
		err := fmt.Errorf("unexpected status %d fetching %s", res.StatusCode(), pageURL)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		err := fmt.Errorf("empty response body from %s", pageURL)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty body")
		return "", err
	}

	return body, nil
}

func (c *Client) jitter(ctx context.Context) error {
	if c.jitterMax <= 0 {
		return nil
	}
	ms, err := random.IntRange(c.jitterMin, c.jitterMax)
	if err != nil {
		ms = c.jitterMin
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}
