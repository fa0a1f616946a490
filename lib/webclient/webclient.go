// Package webclient is the transport layer under every scraping operation.
// The Client interface is what the domain code programs against; the resty
// implementation in this package adds rate limiting, a cookie jar, browser
// camouflage and instrumentation. Tests swap in scripted implementations.
package webclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client issues site requests. Implementations apply their own throttling
// and session state; callers only see URLs and normalized responses.
//
// A non-2xx status is not an error. Errors mean the exchange itself failed:
// connection, TLS, timeout, cancelled context.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
	Post(ctx context.Context, url string, body Body) (*Response, error)

	// SetCookies stores cookies for u in the session jar.
	SetCookies(u *url.URL, cookies []*http.Cookie)
	// Cookies returns the cookies the jar would send to u.
	Cookies(u *url.URL) []*http.Cookie
	// ClearCookies drops every cookie stored for u.
	ClearCookies(u *url.URL)

	// Close releases held connections. Idempotent.
	Close() error
}

// Response is the normalized result of one exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cookies holds the Set-Cookie values received on this exchange. They
	// are already merged into the session jar by the time callers see them.
	Cookies []*http.Cookie
	// URL is the final URL after any redirects were followed.
	URL string
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Body is a POST payload. Raw payloads carry their content type explicitly;
// nothing here guesses one.
type Body struct {
	form        url.Values
	raw         []byte
	contentType string
}

func FormBody(values url.Values) Body {
	return Body{form: values}
}

func RawBody(contentType string, data []byte) Body {
	return Body{raw: data, contentType: contentType}
}

func TextBody(text string) Body {
	return Body{raw: []byte(text), contentType: "text/plain; charset=utf-8"}
}

// TransportError wraps a network-level failure. The request may never have
// left the machine; it was in any case not answered.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
