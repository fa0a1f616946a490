package skoob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"goskoob/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// PublisherService reads publisher pages and their catalogs.
type PublisherService struct {
	session *session
}

// GetByID scrapes a publisher page: identity, stats and the latest
// releases block.
func (s *PublisherService) GetByID(ctx context.Context, publisherID int) (Publisher, error) {
	ctx, span := tracer.Start(ctx, "publishers:GetByID")
	defer span.End()

	res, err := s.session.http.Get(ctx, fmt.Sprintf("/editora/%d", publisherID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publisher page fetch failed")
		return Publisher{}, err
	}
	doc, err := s.session.document("publishers:GetByID", res)
	if err != nil {
		return Publisher{}, err
	}
	if doc.Find("h2").Length() == 0 && doc.Find("div#historico").Length() == 0 {
		span.SetStatus(codes.Error, "publisher page layout changed")
		return Publisher{}, &ParseError{
			Op:  "publishers:GetByID",
			URL: res.URL,
			Err: errors.New("publisher page layout missing"),
		}
	}

	out := Publisher{
		ID:          publisherID,
		Name:        htmlutil.Clean(doc.Find("h2").First().Text()),
		Description: htmlutil.Clean(doc.Find("div#historico").First().Text()),
		Stats:       parsePublisherStats(doc.Find("div#vt_estatisticas").First()),
	}
	if out.Name == "" {
		out.Name = htmlutil.Clean(doc.Find("title").First().Text())
	}
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if htmlutil.Clean(a.Text()) == "Site oficial" {
			out.Website = a.AttrOr("href", "")
			return false
		}
		return true
	})
	doc.Find("div#livros_lancamentos div.livro-capa-mini").Each(func(_ int, d *goquery.Selection) {
		a := d.Find("a").First()
		if a.Length() == 0 {
			return
		}
		out.LastReleases = append(out.LastReleases, BookThumb{
			Title:    a.AttrOr("title", ""),
			URL:      s.session.absURL(a.AttrOr("href", "")),
			CoverURL: coverURL(a.Find("img").First().AttrOr("src", "")),
		})
	})
	return out, nil
}

// GetAuthors lists the authors published by a publisher.
func (s *PublisherService) GetAuthors(ctx context.Context, publisherID, page int) (Page[AuthorSearchResult], error) {
	ctx, span := tracer.Start(ctx, "publishers:GetAuthors")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	res, err := s.session.http.Get(ctx, fmt.Sprintf("/editora/autores/%d/mpage:%d", publisherID, page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publisher authors fetch failed")
		return Page[AuthorSearchResult]{}, err
	}
	doc, err := s.session.document("publishers:GetAuthors", res)
	if err != nil {
		return Page[AuthorSearchResult]{}, err
	}

	schema := ListSchema{Fragment: "div.box_autor"}
	results, dropped, err := extractList(ctx, "publishers:GetAuthors", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (AuthorSearchResult, error) {
			return s.parsePublisherAuthor(sel)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publisher authors layout changed")
		return Page[AuthorSearchResult]{}, err
	}

	return Page[AuthorSearchResult]{
		Results:     results,
		Page:        page,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// GetBooks lists a publisher's catalog.
func (s *PublisherService) GetBooks(ctx context.Context, publisherID, page int) (Page[BookSearchResult], error) {
	ctx, span := tracer.Start(ctx, "publishers:GetBooks")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	res, err := s.session.http.Get(ctx, fmt.Sprintf("/editora/livros/%d/mpage:%d", publisherID, page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publisher books fetch failed")
		return Page[BookSearchResult]{}, err
	}
	doc, err := s.session.document("publishers:GetBooks", res)
	if err != nil {
		return Page[BookSearchResult]{}, err
	}

	schema := ListSchema{Fragment: "div.box_livro"}
	results, dropped, err := extractList(ctx, "publishers:GetBooks", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (BookSearchResult, error) {
			return s.parsePublisherBook(sel)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publisher books layout changed")
		return Page[BookSearchResult]{}, err
	}

	return Page[BookSearchResult]{
		Results:     results,
		Page:        page,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

func (s *PublisherService) parsePublisherAuthor(sel *goquery.Selection) (AuthorSearchResult, error) {
	anchor := sel.Find("a").First()
	if anchor.Length() == 0 {
		return AuthorSearchResult{}, fmt.Errorf("%w: author link", ErrMissingField)
	}
	href := anchor.AttrOr("href", "")
	id, err := authorIDFromURL(href)
	if err != nil {
		return AuthorSearchResult{}, fmt.Errorf("author link: %w", err)
	}
	return AuthorSearchResult{
		ID:       id,
		Name:     htmlutil.Clean(sel.Find("h3").First().Text()),
		URL:      s.session.absURL(href),
		PhotoURL: anchor.Find("img").First().AttrOr("src", ""),
	}, nil
}

func (s *PublisherService) parsePublisherBook(sel *goquery.Selection) (BookSearchResult, error) {
	anchor := sel.Find("a").First()
	if anchor.Length() == 0 {
		return BookSearchResult{}, fmt.Errorf("%w: book link", ErrMissingField)
	}
	href := anchor.AttrOr("href", "")
	out := BookSearchResult{
		Title:    anchor.AttrOr("title", ""),
		URL:      s.session.absURL(href),
		CoverURL: coverURL(anchor.Find("img").First().AttrOr("src", "")),
	}
	if id, err := bookIDFromURL(href); err == nil {
		out.BookID = id
	}
	if id, err := editionIDFromURL(href); err == nil {
		out.EditionID = id
	}
	return out, nil
}

// parsePublisherStats reads the follower, rating and gender numbers
// from the statistics block. The rating arrives as "4,2 / 1.234",
// average over count.
func parsePublisherStats(stats *goquery.Selection) PublisherStats {
	var out PublisherStats
	if stats.Length() == 0 {
		return out
	}

	if txt := nextSpanAfter(stats, "span", "Seguidor"); txt != "" {
		if n, err := htmlutil.Digits(txt); err == nil {
			out.Followers = n
		}
	}
	if txt := nextSpanAfter(stats, "span", "Avalia"); txt != "" {
		if left, right, found := strings.Cut(txt, "/"); found {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(htmlutil.Clean(left), ",", "."), 64); err == nil {
				out.AverageRating = v
			}
			if n, err := htmlutil.Digits(right); err == nil {
				out.Ratings = n
			}
		}
	}
	if txt := nextSpanAfter(stats, "i.icon-male", ""); txt != "" {
		if n, err := htmlutil.Digits(txt); err == nil {
			out.MalePercentage = n
		}
	}
	if txt := nextSpanAfter(stats, "i.icon-female", ""); txt != "" {
		if n, err := htmlutil.Digits(txt); err == nil {
			out.FemalePercentage = n
		}
	}
	return out
}

// nextSpanAfter finds the first element matching selector whose text
// contains substr and returns the text of the span right after it.
func nextSpanAfter(scope *goquery.Selection, selector, substr string) string {
	out := ""
	scope.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if substr != "" && !strings.Contains(sel.Text(), substr) {
			return true
		}
		out = htmlutil.Clean(sel.NextAllFiltered("span").First().Text())
		return false
	})
	return out
}
