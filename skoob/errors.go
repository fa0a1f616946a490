package skoob

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is the cause carried by guard failures. Call Auth.Login
// or Auth.LoginWithCookie before using authenticated operations.
var ErrNotLoggedIn = errors.New("not logged in")

// ErrNotFound marks lookups the site answered but could not satisfy.
var ErrNotFound = errors.New("not found")

// ErrMissingField marks a record fragment that lacks a field the parser
// needs. The extraction loop drops the fragment and keeps the rest of
// the page.
var ErrMissingField = errors.New("missing required field")

// AuthenticationError reports a rejected login or an operation that
// needs a session the client does not hold.
type AuthenticationError struct {
	Op  string
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ParseError reports a page whose structure no longer matches what the
// extractor expects. Individual bad records never produce one, they
// land in Page.Dropped instead.
type ParseError struct {
	Op  string
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse %s: %v", e.Op, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
