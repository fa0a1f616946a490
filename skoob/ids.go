package skoob

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Book pages end in "{slug}-{bookID}ed{editionID}.html", or just
// "{bookID}-ed{editionID}.html" for the oldest records. Profile pages
// end in "/{id}-{handle}".

func bookIDFromURL(u string) (int, error) {
	name := strings.TrimSuffix(path.Base(u), ".html")
	parts := strings.Split(name, "-")
	if id, err := strconv.Atoi(parts[0]); err == nil {
		return id, nil
	}
	digits, _, found := strings.Cut(parts[len(parts)-1], "ed")
	if !found {
		return 0, fmt.Errorf("%q does not look like a book url", u)
	}
	id, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return 0, fmt.Errorf("%q does not look like a book url", u)
	}
	return id, nil
}

func editionIDFromURL(u string) (int, error) {
	idx := strings.LastIndex(u, "ed")
	if idx < 0 {
		return 0, fmt.Errorf("%q carries no edition id", u)
	}
	id, err := strconv.Atoi(strings.TrimSuffix(u[idx+2:], ".html"))
	if err != nil {
		return 0, fmt.Errorf("%q carries no edition id", u)
	}
	return id, nil
}

func profileIDFromURL(u string) (int, error) {
	digits, _, _ := strings.Cut(path.Base(u), "-")
	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%q does not look like a profile url", u)
	}
	return id, nil
}

func userIDFromURL(u string) (int, error) {
	return profileIDFromURL(u)
}

func usernameFromURL(u string) string {
	_, handle, _ := strings.Cut(path.Base(u), "-")
	return handle
}

func authorIDFromURL(u string) (int, error) {
	return profileIDFromURL(u)
}
