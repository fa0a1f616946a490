package skoob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is one page of a paginated listing.
type Page[T any] struct {
	// Results holds the parsed records in document order.
	Results []T
	// Total is the site-reported count across all pages, 0 when the
	// page exposes no counter.
	Total int
	// Page is the 1-based page number that was fetched.
	Page int
	// Limit is the page size when the endpoint has a known one.
	Limit int
	// HasNextPage comes from the page's own next control when it has
	// one, otherwise from Page*Limit < Total. It is never guessed
	// from len(Results).
	HasNextPage bool
	// Dropped lists fragments skipped during extraction. Results
	// above them are still good.
	Dropped []ExtractEvent
}

// ExtractEvent records one skipped fragment: its position on the page
// and the reason it was dropped.
type ExtractEvent struct {
	Fragment int
	Err      error
}

// ListSchema locates the records of a listing page. Fragment matches a
// single record. Marker matches surrounding structure that survives
// even when the listing is empty, so an empty page can be told apart
// from a redesigned one; with an empty Marker a page without fragments
// is trusted to be empty.
type ListSchema struct {
	Fragment string
	Marker   string
}

// extractList runs parse over every fragment the schema matches.
// Fragments fail independently: a bad record is dropped, logged and
// recorded, and its siblings still parse. The error is non-nil only
// when the page as a whole is unusable, and is always a *ParseError.
func extractList[T any](ctx context.Context, op, pageURL string, doc *goquery.Document, schema ListSchema, parse func(i int, s *goquery.Selection) (T, error)) ([]T, []ExtractEvent, error) {
	frags := doc.Find(schema.Fragment)
	if frags.Length() == 0 {
		if schema.Marker != "" && doc.Find(schema.Marker).Length() == 0 {
			return nil, nil, &ParseError{
				Op:  op,
				URL: pageURL,
				Err: fmt.Errorf("no %q fragments and no %q marker", schema.Fragment, schema.Marker),
			}
		}
		return nil, nil, nil
	}

	var results []T
	var dropped []ExtractEvent
	structural := 0
	frags.Each(func(i int, sel *goquery.Selection) {
		item, err := parse(i, sel)
		if err != nil {
			if !errors.Is(err, ErrMissingField) {
				structural++
			}
			slog.WarnContext(ctx, "dropping fragment", "op", op, "fragment", i, "err", err)
			dropped = append(dropped, ExtractEvent{Fragment: i, Err: err})
			return
		}
		results = append(results, item)
	})

	if structural == frags.Length() {
		return nil, dropped, &ParseError{
			Op:  op,
			URL: pageURL,
			Err: fmt.Errorf("all %d fragments failed to parse", frags.Length()),
		}
	}
	return results, dropped, nil
}

// hasNextControl reports whether the page carries a next-page
// affordance in any of the forms the site uses: an element with class
// "proximo" or an anchor labeled "Próxima".
func hasNextControl(doc *goquery.Document) bool {
	if doc.Find("a.proximo, div.proximo").Length() > 0 {
		return true
	}
	found := false
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), "Próxima") {
			found = true
			return false
		}
		return true
	})
	return found
}
