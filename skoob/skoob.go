// Package skoob reads and writes skoob.com.br, the brazilian social
// reading network. It signs in with a member account, searches the
// catalog, scrapes book, author, user and publisher pages and manages
// the member's shelves, all through one rate limited transport.
package skoob

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"goskoob/lib/pagecache"
	"goskoob/lib/ratelimit"
	"goskoob/lib/webclient"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("skoob")

const DefaultBaseURL = "https://www.skoob.com.br"

const sessionCookie = "PHPSESSID"

// Options configures a Client. The zero value talks to the production
// site at one call per second.
type Options struct {
	// BaseURL overrides the site address, mostly for tests.
	BaseURL string
	// Limiter throttles every outgoing call. Defaults to one call per
	// second.
	Limiter *ratelimit.Limiter
	// Transport replaces the built-in HTTP client. When set, the
	// transport fields below are ignored and Close leaves it open.
	Transport webclient.Client
	// Cookie is a raw session token installed into the jar at
	// construction. It is not validated until Auth.LoginWithCookie or
	// the first authenticated call.
	Cookie  string
	Timeout time.Duration
	Proxy   string
	Headers map[string]string
	Cache   *pagecache.Cache
}

// Client bundles the site services around one shared session.
// Independent clients carry independent sessions.
type Client struct {
	Auth       *AuthService
	Books      *BookService
	Authors    *AuthorService
	Users      *UserService
	Publishers *PublisherService
	Profile    *ProfileService

	http      webclient.Client
	ownsHTTP  bool
	session   *session
	closeOnce sync.Once
}

// New builds a Client. It performs no network I/O; the first request
// happens on the first operation.
func New(opts Options) (*Client, error) {
	rawBase := opts.BaseURL
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, err
	}

	transport := opts.Transport
	owns := false
	if transport == nil {
		transport, err = webclient.New(webclient.Options{
			BaseURL: rawBase,
			Limiter: opts.Limiter,
			Timeout: opts.Timeout,
			Proxy:   opts.Proxy,
			Headers: opts.Headers,
			Cache:   opts.Cache,
		})
		if err != nil {
			return nil, err
		}
		owns = true
	}

	sess := &session{http: transport, base: base}
	if opts.Cookie != "" {
		sess.installCookie(opts.Cookie)
	}

	c := &Client{
		http:     transport,
		ownsHTTP: owns,
		session:  sess,
	}
	c.Auth = &AuthService{session: sess}
	c.Books = &BookService{session: sess}
	c.Authors = &AuthorService{session: sess}
	c.Users = &UserService{session: sess}
	c.Publishers = &PublisherService{session: sess}
	c.Profile = &ProfileService{session: sess}
	return c, nil
}

// Close drops the session and releases the transport when the client
// owns it. Closing twice is harmless. An injected Transport stays
// open, its owner closes it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.session.setAuthenticated(false)
		if c.ownsHTTP {
			err = c.http.Close()
		}
	})
	return err
}

// session is the state every service shares: the transport, the
// resolved base URL and the login flag.
type session struct {
	http webclient.Client
	base *url.URL

	mu            sync.RWMutex
	authenticated bool
}

func (s *session) loggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *session) setAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}

// require rejects an authenticated operation before any network
// traffic when the session holds no login.
func (s *session) require(op string) error {
	if !s.loggedIn() {
		return &AuthenticationError{Op: op, Err: ErrNotLoggedIn}
	}
	return nil
}

// observe inspects a completed response for signs the server dropped
// the session: a 401 or a redirect that landed on the login page. The
// flag flips so later calls fail fast without hitting the site.
func (s *session) observe(res *webclient.Response) {
	if res == nil {
		return
	}
	if res.StatusCode == http.StatusUnauthorized || landedOnLogin(res.URL) {
		s.setAuthenticated(false)
	}
}

func landedOnLogin(rawurl string) bool {
	u, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, "/login")
}

// observedGet is a GET plus server-side logout detection, for
// endpoints that only work inside a session.
func (s *session) observedGet(ctx context.Context, path string) (*webclient.Response, error) {
	res, err := s.http.Get(ctx, path)
	if res != nil {
		s.observe(res)
	}
	return res, err
}

func (s *session) installCookie(token string) {
	s.http.SetCookies(s.base, []*http.Cookie{{
		Name:  sessionCookie,
		Value: token,
		Path:  "/",
	}})
}

// absURL expands a site-relative href.
func (s *session) absURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return s.base.ResolveReference(ref).String()
}

// document parses a fetched page as HTML.
func (s *session) document(op string, res *webclient.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &ParseError{Op: op, URL: res.URL, Err: err}
	}
	return doc, nil
}

// envelope is the wrapper around every /v1 JSON payload.
type envelope struct {
	Success        bool            `json:"success"`
	Response       json.RawMessage `json:"response"`
	Message        string          `json:"message"`
	CodDescription string          `json:"cod_description"`
	Paging         paging          `json:"paging"`
}

type paging struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	NextPage int `json:"next_page"`
	Limit    int `json:"limit"`
}

// reason describes why the site rejected a call, from whichever field
// the endpoint populated.
func (e *envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.CodDescription != "" {
		return e.CodDescription
	}
	return "no reason given"
}

func decodeEnvelope(op string, res *webclient.Response) (*envelope, error) {
	var env envelope
	if err := res.JSON(&env); err != nil {
		return nil, &ParseError{Op: op, URL: res.URL, Err: err}
	}
	return &env, nil
}
