package skoob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"goskoob/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// AuthorService searches authors and reads their profile pages.
type AuthorService struct {
	session *session
}

// Search looks authors up by name.
func (s *AuthorService) Search(ctx context.Context, query string, page int) (Page[AuthorSearchResult], error) {
	ctx, span := tracer.Start(ctx, "authors:Search")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/autor/lista/busca:%s/mpage:%d", url.PathEscape(query), page)
	res, err := s.session.http.Get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "author search fetch failed")
		return Page[AuthorSearchResult]{}, err
	}
	doc, err := s.session.document("authors:Search", res)
	if err != nil {
		return Page[AuthorSearchResult]{}, err
	}

	// author rows carry no class of their own, only an inline style
	schema := ListSchema{
		Fragment: "div[style*='border-bottom:#ccc'][style*='margin-bottom:10px']",
		Marker:   "div.contador",
	}
	results, dropped, err := extractList(ctx, "authors:Search", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (AuthorSearchResult, error) {
			return s.parseAuthorBlock(sel)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "author search layout changed")
		return Page[AuthorSearchResult]{}, err
	}

	total, _ := htmlutil.Digits(doc.Find("div.contador").First().Text())
	return Page[AuthorSearchResult]{
		Results:     results,
		Total:       total,
		Page:        page,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// GetByID scrapes an author profile page.
func (s *AuthorService) GetByID(ctx context.Context, authorID int) (AuthorProfile, error) {
	ctx, span := tracer.Start(ctx, "authors:GetByID")
	defer span.End()

	res, err := s.session.http.Get(ctx, fmt.Sprintf("/autor/%d", authorID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "author page fetch failed")
		return AuthorProfile{}, err
	}
	doc, err := s.session.document("authors:GetByID", res)
	if err != nil {
		return AuthorProfile{}, err
	}
	if doc.Find("h1.given-name, div#livro-perfil-sinopse-txt").Length() == 0 {
		span.SetStatus(codes.Error, "author page layout changed")
		return AuthorProfile{}, &ParseError{
			Op:  "authors:GetByID",
			URL: res.URL,
			Err: errors.New("author profile layout missing"),
		}
	}

	profile := AuthorProfile{
		Name:        htmlutil.Clean(doc.Find("h1.given-name").First().Text()),
		PhotoURL:    doc.Find("img.img-rounded").First().AttrOr("src", ""),
		Description: htmlutil.Clean(doc.Find("div#livro-perfil-sinopse-txt").First().Text()),
		Stats:       authorStats(doc),
	}
	profile.BirthDate, profile.Location = authorBirthAndLocation(doc)

	doc.Find("div#autor-icones a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		classes := strings.Fields(a.Find("span").First().AttrOr("class", ""))
		if href == "" || len(classes) == 0 || !strings.HasPrefix(classes[0], "icon-") {
			return
		}
		if profile.Links == nil {
			profile.Links = map[string]string{}
		}
		profile.Links[strings.TrimPrefix(classes[0], "icon-")] = href
	})
	doc.Find("div.genero-item").Each(func(_ int, tag *goquery.Selection) {
		if txt := htmlutil.Clean(tag.Text()); txt != "" {
			profile.Tags = append(profile.Tags, txt)
		}
	})
	doc.Find("div.clivro.livro-capa-mini").Each(func(_ int, d *goquery.Selection) {
		a := d.Find("a").First()
		if a.Length() == 0 {
			return
		}
		profile.Books = append(profile.Books, BookThumb{
			Title:    a.AttrOr("title", ""),
			URL:      s.session.absURL(a.AttrOr("href", "")),
			CoverURL: coverURL(d.Find("img").First().AttrOr("src", "")),
		})
	})
	return profile, nil
}

// GetBooks lists an author's bibliography. The page shows the total in
// its active tab badge.
func (s *AuthorService) GetBooks(ctx context.Context, authorID, page int) (Page[BookSearchResult], error) {
	ctx, span := tracer.Start(ctx, "authors:GetBooks")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	res, err := s.session.http.Get(ctx, fmt.Sprintf("/autor/livros/%d/page:%d", authorID, page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "author books fetch failed")
		return Page[BookSearchResult]{}, err
	}
	doc, err := s.session.document("authors:GetBooks", res)
	if err != nil {
		return Page[BookSearchResult]{}, err
	}

	schema := ListSchema{Fragment: "div.clivro", Marker: "span.badge"}
	results, dropped, err := extractList(ctx, "authors:GetBooks", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (BookSearchResult, error) {
			return s.parseAuthorBook(sel)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "author books layout changed")
		return Page[BookSearchResult]{}, err
	}

	total, _ := htmlutil.Digits(doc.Find("span.badge.badge-ativa").First().Text())
	return Page[BookSearchResult]{
		Results:     results,
		Total:       total,
		Page:        page,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

var authorHref = regexp.MustCompile(`/autor/\d+-`)

func (s *AuthorService) parseAuthorBlock(sel *goquery.Selection) (AuthorSearchResult, error) {
	img := sel.Find("img.img-rounded").First()
	var link *goquery.Selection
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if authorHref.MatchString(href) && htmlutil.Clean(a.Text()) != "" {
			link = a
			return false
		}
		return true
	})
	if img.Length() == 0 || link == nil {
		return AuthorSearchResult{}, fmt.Errorf("%w: author link or portrait", ErrMissingField)
	}

	href := link.AttrOr("href", "")
	id, err := authorIDFromURL(href)
	if err != nil {
		return AuthorSearchResult{}, fmt.Errorf("author link: %w", err)
	}
	return AuthorSearchResult{
		ID:       id,
		Name:     htmlutil.Clean(link.Text()),
		Nickname: htmlutil.Clean(sel.Find("i").First().Text()),
		URL:      s.session.absURL(href),
		PhotoURL: img.AttrOr("src", ""),
	}, nil
}

func (s *AuthorService) parseAuthorBook(sel *goquery.Selection) (BookSearchResult, error) {
	anchor := sel.Find("a").First()
	if anchor.Length() == 0 {
		return BookSearchResult{}, fmt.Errorf("%w: book link", ErrMissingField)
	}
	href := anchor.AttrOr("href", "")
	bookID, err := bookIDFromURL(href)
	if err != nil {
		return BookSearchResult{}, fmt.Errorf("book link: %w", err)
	}

	out := BookSearchResult{
		BookID:   bookID,
		Title:    anchor.AttrOr("title", ""),
		URL:      s.session.absURL(href),
		CoverURL: coverURL(sel.Find("img").First().AttrOr("src", "")),
	}
	if out.Title == "" {
		out.Title = htmlutil.Clean(anchor.Text())
	}
	if id, ok := htmlutil.AttrInt(sel, "id"); ok {
		out.EditionID = id
	} else if id, err := editionIDFromURL(href); err == nil {
		out.EditionID = id
	} else {
		out.EditionID = bookID
	}
	return out, nil
}

func authorBirthAndLocation(doc *goquery.Document) (birth, location string) {
	doc.Find("div#box-generos b").Each(func(_ int, b *goquery.Selection) {
		label := b.Text()
		node := b.Nodes[0].NextSibling
		if node == nil {
			return
		}
		switch {
		case strings.Contains(label, "Nascimento"):
			birth = strings.Trim(htmlutil.Clean(htmlutil.Text(node)), " |")
		case strings.Contains(label, "Local"):
			location = htmlutil.Clean(htmlutil.Text(node))
		}
	})
	return birth, location
}

func authorStats(doc *goquery.Document) AuthorStats {
	var out AuthorStats
	stats := doc.Find("div#livro-perfil-status02").First()
	if stats.Length() == 0 {
		return out
	}

	if txt := htmlutil.Clean(stats.Find("span.rating").First().Text()); txt != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(txt, ",", "."), 64); err == nil {
			out.AverageRating = v
		}
	}
	stats.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(span.Text()), "avalia") {
			return true
		}
		if n, err := htmlutil.Digits(span.Text()); err == nil {
			out.Ratings = n
		}
		return false
	})
	stats.Find("div.bar").Each(func(_ int, bar *goquery.Selection) {
		value, err := htmlutil.Digits(bar.Find("b").First().Text())
		if err != nil {
			return
		}
		label := strings.ToLower(bar.Find("a").First().Text())
		switch {
		case strings.Contains(label, "leitores"):
			out.Readers = value
		case strings.Contains(label, "seguidores"):
			out.Followers = value
		}
	})
	return out
}
