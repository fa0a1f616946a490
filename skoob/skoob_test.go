package skoob

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"goskoob/lib/ratelimit"
	"goskoob/lib/testutil"
	"goskoob/lib/webclient"

	"github.com/stretchr/testify/require"
)

func unthrottled(t *testing.T) *ratelimit.Limiter {
	limiter, err := ratelimit.New(1000, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return limiter
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Options{BaseURL: baseURL, Limiter: unthrottled(t)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// authedRoutes adds the login exchange to a route table so a test can
// sign in against its fixture server.
func authedRoutes(extra map[string]string) map[string]string {
	routes := map[string]string{
		"/v1/login":           "testdata/login_ok.json",
		"/v1/user/stats:true": "testdata/me.json",
	}
	for path, file := range extra {
		routes[path] = file
	}
	return routes
}

func login(t *testing.T, ctx context.Context, client *Client) User {
	t.Helper()
	user, err := client.Auth.Login(ctx, "ana@example.com", "segredo")
	require.NoError(t, err)
	require.True(t, client.Auth.Authenticated())
	return user
}

// scriptedClient answers transport calls from a function instead of a
// network, and counts every call it sees.
type scriptedClient struct {
	calls int
	reply func(method, path string) (*webclient.Response, error)
	jar   map[string][]*http.Cookie
}

func newScriptedClient(reply func(method, path string) (*webclient.Response, error)) *scriptedClient {
	return &scriptedClient{reply: reply, jar: map[string][]*http.Cookie{}}
}

func (c *scriptedClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	c.calls++
	return c.reply(http.MethodGet, url)
}

func (c *scriptedClient) Post(ctx context.Context, url string, body webclient.Body) (*webclient.Response, error) {
	c.calls++
	return c.reply(http.MethodPost, url)
}

func (c *scriptedClient) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.jar[u.Host] = append(c.jar[u.Host], cookies...)
}

func (c *scriptedClient) Cookies(u *url.URL) []*http.Cookie { return c.jar[u.Host] }

func (c *scriptedClient) ClearCookies(u *url.URL) { delete(c.jar, u.Host) }

func (c *scriptedClient) Close() error { return nil }

// deadTransport fails the test on any call. It backs the guard tests:
// an operation without a login must not reach the transport at all.
func deadTransport(t *testing.T) *scriptedClient {
	return newScriptedClient(func(method, path string) (*webclient.Response, error) {
		t.Errorf("unexpected transport call: %s %s", method, path)
		return nil, &webclient.TransportError{Op: method, URL: path, Err: errors.New("no transport")}
	})
}

func jsonResponse(status int, body, finalURL string) *webclient.Response {
	return &webclient.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       []byte(body),
		URL:        finalURL,
	}
}

func TestLoginSuccess(t *testing.T) {
	cleanup := testutil.Setup(t, "skoob")
	defer cleanup()
	ctx := context.Background()

	server := testutil.FixtureServer(t, authedRoutes(nil))
	client := newTestClient(t, server.URL)

	require.False(t, client.Auth.Authenticated())
	user := login(t, ctx, client)
	require.Equal(t, 77, user.ID)
	require.Equal(t, "ana", user.Username)
	require.Equal(t, "Ana Souza", user.Name)
	require.Equal(t, server.URL+"/usuario/77-ana", user.ProfileURL)
	require.Equal(t, 420, user.Stats.Books)
	require.Equal(t, 98231, user.Stats.PagesRead)
	require.True(t, user.Beta)
	require.False(t, user.Premium)
}

func TestLoginRejectedDespite200(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/v1/login": "testdata/login_bad.json",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Auth.Login(ctx, "ana@example.com", "errada")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.ErrorContains(t, err, "Senha inválida")
	require.False(t, client.Auth.Authenticated())
}

func TestLoginNeedsProfileConfirmation(t *testing.T) {
	ctx := context.Background()

	// the login endpoint says yes but the profile probe says no; the
	// session must not count as authenticated
	server := testutil.FixtureServer(t, map[string]string{
		"/v1/login":           "testdata/login_ok.json",
		"/v1/user/stats:true": "testdata/refused.json",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Auth.Login(ctx, "ana@example.com", "segredo")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.False(t, client.Auth.Authenticated())
}

func TestLoginWithCookie(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, authedRoutes(nil))
	client := newTestClient(t, server.URL)

	token := testutil.Token(t, 26)
	user, err := client.Auth.LoginWithCookie(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "ana", user.Username)
	require.True(t, client.Auth.Authenticated())

	cookies := client.http.Cookies(client.session.base)
	require.Len(t, cookies, 1)
	require.Equal(t, sessionCookie, cookies[0].Name)
	require.Equal(t, token, cookies[0].Value)
}

func TestGuardShortCircuits(t *testing.T) {
	ctx := context.Background()

	ops := map[string]func(ctx context.Context, c *Client) error{
		"auth myinfo": func(ctx context.Context, c *Client) error {
			_, err := c.Auth.MyInfo(ctx)
			return err
		},
		"users get": func(ctx context.Context, c *Client) error {
			_, err := c.Users.GetByID(ctx, 88)
			return err
		},
		"users search": func(ctx context.Context, c *Client) error {
			_, err := c.Users.Search(ctx, "ana", "", "", 1, 0)
			return err
		},
		"users relations": func(ctx context.Context, c *Client) error {
			_, err := c.Users.GetRelations(ctx, 77, RelationFriends, 1)
			return err
		},
		"users bookcase": func(ctx context.Context, c *Client) error {
			_, err := c.Users.GetBookcase(ctx, 77, ShelfAll, 1)
			return err
		},
		"users read stats": func(ctx context.Context, c *Client) error {
			_, err := c.Users.GetReadStats(ctx, 77)
			return err
		},
		"profile label": func(ctx context.Context, c *Client) error {
			return c.Profile.AddBookLabel(ctx, 321, LabelFavorite)
		},
		"profile rate": func(ctx context.Context, c *Client) error {
			return c.Profile.Rate(ctx, 321, 4)
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			stub := deadTransport(t)
			client, err := New(Options{Transport: stub})
			require.NoError(t, err)

			err = op(ctx, client)
			var authErr *AuthenticationError
			require.ErrorAs(t, err, &authErr)
			require.ErrorIs(t, err, ErrNotLoggedIn)
			require.Zero(t, stub.calls)
		})
	}
}

func TestServerDroppedSessionFlipsFlag(t *testing.T) {
	ctx := context.Background()
	base := DefaultBaseURL

	stub := newScriptedClient(func(method, path string) (*webclient.Response, error) {
		switch {
		case method == http.MethodPost && path == "/v1/login":
			return jsonResponse(http.StatusOK, `{"success": true}`, base+path), nil
		case path == "/v1/user/stats:true":
			return jsonResponse(http.StatusOK,
				`{"success": true, "response": {"id": 77, "skoob": "ana", "url": "/usuario/77-ana"}}`,
				base+path), nil
		case path == "/v1/user/88/stats:true":
			return jsonResponse(http.StatusUnauthorized, `{"success": false, "message": "Unauthorized"}`, base+path), nil
		}
		return jsonResponse(http.StatusNotFound, `{}`, base+path), nil
	})
	client, err := New(Options{Transport: stub})
	require.NoError(t, err)
	login(t, ctx, client)
	require.Equal(t, 2, stub.calls)

	_, err = client.Users.GetByID(ctx, 88)
	require.Error(t, err)
	require.False(t, client.Auth.Authenticated())
	require.Equal(t, 3, stub.calls)

	// the flag is down, so this one never reaches the transport
	_, err = client.Users.GetByID(ctx, 88)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.Equal(t, 3, stub.calls)
}

func TestLoginRedirectFlipsFlag(t *testing.T) {
	ctx := context.Background()
	base := DefaultBaseURL

	stub := newScriptedClient(func(method, path string) (*webclient.Response, error) {
		switch {
		case method == http.MethodPost && path == "/v1/login":
			return jsonResponse(http.StatusOK, `{"success": true}`, base+path), nil
		case path == "/v1/user/stats:true":
			return jsonResponse(http.StatusOK,
				`{"success": true, "response": {"id": 77, "skoob": "ana", "url": "/usuario/77-ana"}}`,
				base+path), nil
		}
		// an expired session bounces page requests to the login form
		return jsonResponse(http.StatusOK, `<html><body>Entrar</body></html>`, base+"/login"), nil
	})
	client, err := New(Options{Transport: stub})
	require.NoError(t, err)
	login(t, ctx, client)

	page, err := client.Users.GetRelations(ctx, 77, RelationFriends, 1)
	require.NoError(t, err)
	require.Empty(t, page.Results)
	require.False(t, client.Auth.Authenticated())

	_, err = client.Users.GetRelations(ctx, 77, RelationFriends, 1)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, authedRoutes(nil))

	client, err := New(Options{
		BaseURL: server.URL,
		Limiter: unthrottled(t),
		Cookie:  "abc123",
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	// the constructor cookie is in the jar but not yet trusted
	require.Len(t, client.http.Cookies(client.session.base), 1)
	require.False(t, client.Auth.Authenticated())

	_, err = client.Auth.LoginWithCookie(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, client.Auth.Authenticated())

	require.NoError(t, client.Auth.Logout(ctx))
	require.False(t, client.Auth.Authenticated())
	require.Empty(t, client.http.Cookies(client.session.base))

	_, err = client.Auth.MyInfo(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestCloseIdempotent(t *testing.T) {
	server := testutil.FixtureServer(t, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestCloseLeavesInjectedTransportOpen(t *testing.T) {
	stub := newScriptedClient(func(method, path string) (*webclient.Response, error) {
		return jsonResponse(http.StatusOK, `{}`, DefaultBaseURL+path), nil
	})
	client, err := New(Options{Transport: stub})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	// the transport still answers, only the session flag dropped
	_, err = stub.Get(context.Background(), "/ping")
	require.NoError(t, err)
	require.False(t, client.Auth.Authenticated())
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "://bad"})
	require.Error(t, err)
}
