package skoob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"goskoob/lib/webclient"

	"go.opentelemetry.io/otel/codes"
)

// AuthService signs the client in and tracks the session.
type AuthService struct {
	session *session
}

// Authenticated reports whether a login succeeded and has not been
// invalidated since, by Logout or by the server dropping the session.
func (s *AuthService) Authenticated() bool {
	return s.session.loggedIn()
}

// Login signs in with the account email and password. A 200 response
// is not trusted on its own: the body must carry the success flag and
// a follow-up profile fetch must come back valid before the session
// counts as authenticated.
func (s *AuthService) Login(ctx context.Context, email, password string) (User, error) {
	ctx, span := tracer.Start(ctx, "auth:Login")
	defer span.End()

	form := url.Values{}
	form.Set("data[Usuario][email]", email)
	form.Set("data[Usuario][senha]", password)
	form.Set("data[Login][automatico]", "true")

	res, err := s.session.http.Post(ctx, "/v1/login", webclient.FormBody(form))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login request failed")
		return User{}, err
	}

	env, err := decodeEnvelope("auth:Login", res)
	if err != nil {
		span.SetStatus(codes.Error, "login response is not json")
		return User{}, &AuthenticationError{Op: "auth:Login", Err: err}
	}
	if !env.Success {
		span.SetStatus(codes.Error, "login rejected")
		return User{}, &AuthenticationError{
			Op:  "auth:Login",
			Err: fmt.Errorf("login rejected: %s", env.reason()),
		}
	}

	user, err := s.fetchMyInfo(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post-login profile check failed")
		return User{}, err
	}
	s.session.setAuthenticated(true)
	slog.InfoContext(ctx, "logged in", "user", user.Username)
	return user, nil
}

// LoginWithCookie resumes a browser session from its PHPSESSID value.
// The token is probed against the profile endpoint before the session
// is trusted.
func (s *AuthService) LoginWithCookie(ctx context.Context, sessionToken string) (User, error) {
	ctx, span := tracer.Start(ctx, "auth:LoginWithCookie")
	defer span.End()

	s.session.installCookie(sessionToken)
	user, err := s.fetchMyInfo(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session token probe failed")
		return User{}, err
	}
	s.session.setAuthenticated(true)
	slog.InfoContext(ctx, "logged in from cookie", "user", user.Username)
	return user, nil
}

// MyInfo returns the profile of the signed-in account.
func (s *AuthService) MyInfo(ctx context.Context) (User, error) {
	ctx, span := tracer.Start(ctx, "auth:MyInfo")
	defer span.End()

	if err := s.session.require("auth:MyInfo"); err != nil {
		return User{}, err
	}
	user, err := s.fetchMyInfo(ctx)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			// the server no longer honors the session
			s.session.setAuthenticated(false)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile fetch failed")
		return User{}, err
	}
	return user, nil
}

// Logout drops the session cookies and the login flag. Operations
// already in flight may fail with an AuthenticationError afterwards.
func (s *AuthService) Logout(ctx context.Context) error {
	_, span := tracer.Start(ctx, "auth:Logout")
	defer span.End()

	s.session.setAuthenticated(false)
	s.session.http.ClearCookies(s.session.base)
	slog.InfoContext(ctx, "logged out")
	return nil
}

func (s *AuthService) fetchMyInfo(ctx context.Context) (User, error) {
	res, err := s.session.http.Get(ctx, "/v1/user/stats:true")
	if err != nil {
		return User{}, err
	}
	env, err := decodeEnvelope("auth:MyInfo", res)
	if err != nil {
		return User{}, &AuthenticationError{Op: "auth:MyInfo", Err: err}
	}
	if !env.Success {
		return User{}, &AuthenticationError{
			Op:  "auth:MyInfo",
			Err: errors.New("session token rejected"),
		}
	}
	var user User
	if err := json.Unmarshal(env.Response, &user); err != nil {
		return User{}, &ParseError{Op: "auth:MyInfo", URL: res.URL, Err: err}
	}
	user.ProfileURL = s.session.absURL(user.ProfileURL)
	return user, nil
}
