package webclient

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"goskoob/lib/pagecache"
	"goskoob/lib/ratelimit"
	"goskoob/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	// BaseURL lets callers pass site-relative paths to Get/Post.
	BaseURL string
	// Limiter throttles every outbound call. Defaults to one call per
	// second; inject a shared limiter to put several clients under one
	// budget.
	Limiter *ratelimit.Limiter
	// Timeout, Proxy and Headers are handed to the underlying client
	// verbatim. Timeout defaults to 30s. Headers win over the built-in
	// user agent.
	Timeout time.Duration
	Proxy   string
	Headers map[string]string
	// Cache, when set, answers repeat GETs within its TTL without a
	// request or a limiter slot.
	Cache *pagecache.Cache
	// TranscriptDir dumps one file per exchange when debug logging is on.
	TranscriptDir string
}

// HTTPClient is the production Client. One instance per scraping session;
// the cookie jar inside is the session's cookie state.
//
// Rate limiting is strict in one direction only: a call that fails after
// the limiter granted its slot does not refund it. The window stays
// charged and the caller's retry waits its turn like any other call.
type HTTPClient struct {
	http    *resty.Client
	jar     http.CookieJar
	base    *url.URL
	limiter *ratelimit.Limiter
	cache   *pagecache.Cache

	closeOnce sync.Once
}

var _ Client = (*HTTPClient)(nil)

func New(opts Options) (*HTTPClient, error) {
	var base *url.URL
	if opts.BaseURL != "" {
		var err error
		base, err = url.Parse(opts.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	if base != nil {
		client.SetBaseURL(opts.BaseURL)
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	if len(opts.Headers) > 0 {
		client.SetHeaders(opts.Headers)
	}

	telemetry.InstrumentResty(client, "lib/webclient")
	if opts.TranscriptDir != "" {
		if err := installTranscripts(client, opts.TranscriptDir); err != nil {
			return nil, err
		}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Default()
	}

	return &HTTPClient{
		http:    client,
		jar:     jar,
		base:    base,
		limiter: limiter,
		cache:   opts.Cache,
	}, nil
}

// abs resolves a possibly site-relative URL for jar and cache keys.
func (c *HTTPClient) abs(rawurl string) string {
	if c.base == nil {
		return rawurl
	}
	ref, err := url.Parse(rawurl)
	if err != nil {
		return rawurl
	}
	return c.base.ResolveReference(ref).String()
}

func (c *HTTPClient) Get(ctx context.Context, rawurl string) (*Response, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, c.abs(rawurl)); ok {
			return &Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       body,
				URL:        c.abs(rawurl),
			}, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.http.R().SetContext(ctx).Get(rawurl)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, URL: c.abs(rawurl), Err: err}
	}

	out := normalize(res)
	if c.cache != nil && res.StatusCode() == http.StatusOK {
		// a failed cache write never fails the request
		_ = c.cache.Put(ctx, out.URL, out.Body)
	}
	return out, nil
}

func (c *HTTPClient) Post(ctx context.Context, rawurl string, body Body) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx)
	if body.form != nil {
		req.SetFormDataFromValues(body.form)
	} else {
		if body.contentType != "" {
			req.SetHeader("Content-Type", body.contentType)
		}
		req.SetBody(body.raw)
	}

	res, err := req.Post(rawurl)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: c.abs(rawurl), Err: err}
	}
	return normalize(res), nil
}

func (c *HTTPClient) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.jar.SetCookies(u, cookies)
}

func (c *HTTPClient) Cookies(u *url.URL) []*http.Cookie {
	return c.jar.Cookies(u)
}

func (c *HTTPClient) ClearCookies(u *url.URL) {
	expired := []*http.Cookie{}
	for _, cookie := range c.jar.Cookies(u) {
		expired = append(expired, &http.Cookie{
			Name:   cookie.Name,
			Path:   "/",
			MaxAge: -1,
		})
	}
	c.jar.SetCookies(u, expired)
}

// Close drops idle connections. The jar and limiter carry no resources that
// outlive the process, so closing twice is harmless.
func (c *HTTPClient) Close() error {
	c.closeOnce.Do(func() {
		c.http.GetClient().CloseIdleConnections()
	})
	return nil
}

func normalize(res *resty.Response) *Response {
	finalURL := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	return &Response{
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
		Cookies:    res.Cookies(),
		URL:        finalURL,
	}
}
