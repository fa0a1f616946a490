package skoob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"goskoob/lib/htmlutil"
	"goskoob/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

const (
	searchPageSize  = 30
	reviewPageSize  = 50
	readersPageSize = 500
)

// BookService searches the catalog and reads book pages.
type BookService struct {
	session *session
}

// Search queries the catalog. The site paginates results 30 at a time
// and reports the grand total on every page.
func (s *BookService) Search(ctx context.Context, query string, field SearchField, page int) (Page[BookSearchResult], error) {
	ctx, span := tracer.Start(ctx, "books:Search")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	if field == "" {
		field = SearchAll
	}

	path := fmt.Sprintf("/livro/lista/busca:%s/tipo:%s/mpage:%d", url.PathEscape(query), field, page)
	res, err := s.session.http.Get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page fetch failed")
		return Page[BookSearchResult]{}, err
	}
	doc, err := s.session.document("books:Search", res)
	if err != nil {
		span.SetStatus(codes.Error, "search page is not html")
		return Page[BookSearchResult]{}, err
	}

	schema := ListSchema{Fragment: "div.box_lista_busca_vertical", Marker: "div.contador"}
	results, dropped, err := extractList(ctx, "books:Search", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (BookSearchResult, error) {
			return s.parseSearchResult(sel)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page layout changed")
		return Page[BookSearchResult]{}, err
	}

	total, _ := htmlutil.Digits(doc.Find("div.contador").First().Text())
	return Page[BookSearchResult]{
		Results:     results,
		Total:       total,
		Page:        page,
		Limit:       searchPageSize,
		HasNextPage: page*searchPageSize < total,
		Dropped:     dropped,
	}, nil
}

// GetByID fetches the full record of an edition.
func (s *BookService) GetByID(ctx context.Context, editionID int) (Book, error) {
	ctx, span := tracer.Start(ctx, "books:GetByID")
	defer span.End()

	res, err := s.session.http.Get(ctx, fmt.Sprintf("/v1/book/%d/stats:true", editionID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "book fetch failed")
		return Book{}, err
	}
	env, err := decodeEnvelope("books:GetByID", res)
	if err != nil {
		return Book{}, err
	}
	if !env.Success {
		span.SetStatus(codes.Error, "book not found")
		return Book{}, fmt.Errorf("edition %d (%s): %w", editionID, env.reason(), ErrNotFound)
	}
	var payload bookPayload
	if err := json.Unmarshal(env.Response, &payload); err != nil {
		return Book{}, &ParseError{Op: "books:GetByID", URL: res.URL, Err: err}
	}
	return payload.toBook(s.session), nil
}

// GetReviews lists the reviews written for a book, newest first as the
// site orders them. Pass editionID 0 to let the page pin the edition
// itself.
func (s *BookService) GetReviews(ctx context.Context, bookID, editionID, page int) (Page[BookReview], error) {
	ctx, span := tracer.Start(ctx, "books:GetReviews")
	defer span.End()

	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/livro/resenhas/%d/mpage:%d/limit:%d", bookID, page, reviewPageSize)
	if editionID > 0 {
		path += fmt.Sprintf("/edition:%d", editionID)
	}
	res, err := s.session.http.Get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reviews page fetch failed")
		return Page[BookReview]{}, err
	}
	doc, err := s.session.document("books:GetReviews", res)
	if err != nil {
		return Page[BookReview]{}, err
	}
	if editionID <= 0 {
		editionID = editionFromBookMenu(doc)
	}

	schema := ListSchema{
		Fragment: "div[id^=resenha]:not([id^=resenhac])",
		Marker:   "div#pg-livro-menu-principal-container",
	}
	results, dropped, err := extractList(ctx, "books:GetReviews", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (BookReview, error) {
			return parseReview(sel, bookID, editionID, 0)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reviews page layout changed")
		return Page[BookReview]{}, err
	}

	return Page[BookReview]{
		Results:     results,
		Page:        page,
		Limit:       reviewPageSize,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// GetReaders lists the IDs of users holding the book on the shelf the
// status names. A limit of 0 means the site default of 500 per page.
func (s *BookService) GetReaders(ctx context.Context, bookID int, status ReaderStatus, limit, page int) (Page[int], error) {
	ctx, span := tracer.Start(ctx, "books:GetReaders")
	defer span.End()

	if limit <= 0 {
		limit = readersPageSize
	}
	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/livro/leitores/%s/%d/limit:%d/page:%d", status, bookID, limit, page)
	res, err := s.session.http.Get(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "readers page fetch failed")
		return Page[int]{}, err
	}
	doc, err := s.session.document("books:GetReaders", res)
	if err != nil {
		return Page[int]{}, err
	}

	schema := ListSchema{
		Fragment: "div.livro-leitor-container",
		Marker:   "div#pg-livro-menu-principal-container",
	}
	results, dropped, err := extractList(ctx, "books:GetReaders", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (int, error) {
			href := sel.Find("a").First().AttrOr("href", "")
			if href == "" {
				return 0, fmt.Errorf("%w: reader link", ErrMissingField)
			}
			id, err := userIDFromURL(href)
			if err != nil {
				return 0, fmt.Errorf("reader link: %w", err)
			}
			return id, nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "readers page layout changed")
		return Page[int]{}, err
	}

	return Page[int]{
		Results:     results,
		Page:        page,
		Limit:       limit,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// SearchClosest runs a page-1 title search and returns the hit whose
// title is nearest to the query under Jaro-Winkler similarity.
func (s *BookService) SearchClosest(ctx context.Context, title string) (BookSearchResult, error) {
	ctx, span := tracer.Start(ctx, "books:SearchClosest")
	defer span.End()

	page, err := s.Search(ctx, title, SearchTitle, 1)
	if err != nil {
		return BookSearchResult{}, err
	}
	if len(page.Results) == 0 {
		return BookSearchResult{}, fmt.Errorf("no results for %q: %w", title, ErrNotFound)
	}

	best := page.Results[0]
	bestScore := -1.0
	for _, candidate := range page.Results {
		score := matchr.JaroWinkler(textutil.Normalize(title), textutil.Normalize(candidate.Title), false)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	span.SetAttributes(
		attribute.String("best_title", best.Title),
		attribute.Float64("score", bestScore),
	)
	return best, nil
}

func (s *BookService) parseSearchResult(sel *goquery.Selection) (BookSearchResult, error) {
	anchor := sel.Find("a.capa-link-item").First()
	if anchor.Length() == 0 {
		return BookSearchResult{}, fmt.Errorf("%w: detail anchor", ErrMissingField)
	}
	bookURL := s.session.absURL(anchor.AttrOr("href", ""))
	bookID, err := bookIDFromURL(bookURL)
	if err != nil {
		return BookSearchResult{}, err
	}
	editionID, err := editionIDFromURL(bookURL)
	if err != nil {
		return BookSearchResult{}, err
	}

	out := BookSearchResult{
		EditionID: editionID,
		BookID:    bookID,
		Title:     anchor.AttrOr("title", ""),
		URL:       bookURL,
		CoverURL:  coverURL(anchor.Find("img").First().AttrOr("src", "")),
	}
	out.Publisher, out.ISBN = publisherAndISBN(sel)
	if txt := htmlutil.Clean(sel.Find("div.star-mini strong").First().Text()); txt != "" {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(txt, ",", "."), 64); err == nil {
			out.Rating = v
		}
	}
	return out, nil
}

var isbnShape = regexp.MustCompile(`^\d{9,13}$|^B0[A-Z0-9]{8,}$`)

// publisherAndISBN reads the detail spans under a search result cover.
// The first span shaped like an ISBN (or an ASIN) is the ISBN, the one
// after it names the publisher.
func publisherAndISBN(sel *goquery.Selection) (publisher, isbn string) {
	var texts []string
	sub := sel.Find("div.detalhes-2-sub").First().Find("div").First()
	sub.Find("span").Each(func(_ int, span *goquery.Selection) {
		txt := htmlutil.Clean(span.Text())
		if txt != "" && txt != "|" {
			texts = append(texts, txt)
		}
	})
	if len(texts) == 0 {
		return "", ""
	}
	if isbnShape.MatchString(texts[0]) {
		isbn = texts[0]
	}
	if len(texts) > 1 {
		publisher = texts[1]
	}
	return publisher, isbn
}

// parseReview reads one resenha fragment. Whichever of bookID,
// editionID and userID is zero gets filled from the fragment's own
// links; the review listing of a book knows the book but not the
// reviewer, a user's shelf knows the reviewer but not the book.
func parseReview(sel *goquery.Selection, bookID, editionID, userID int) (BookReview, error) {
	rawID := sel.AttrOr("id", "")
	reviewID, err := strconv.Atoi(strings.TrimPrefix(rawID, "resenha"))
	if err != nil {
		return BookReview{}, fmt.Errorf("review id %q: %w", rawID, err)
	}
	out := BookReview{
		ReviewID:  reviewID,
		BookID:    bookID,
		EditionID: editionID,
		UserID:    userID,
	}

	if out.UserID == 0 {
		href := findHref(sel, func(h string) bool { return strings.Contains(h, "/usuario/") })
		if href == "" {
			return BookReview{}, fmt.Errorf("%w: reviewer link", ErrMissingField)
		}
		out.UserID, err = userIDFromURL(href)
		if err != nil {
			return BookReview{}, fmt.Errorf("reviewer link: %w", err)
		}
	}
	if out.BookID == 0 {
		href := findHref(sel, bookHref.MatchString)
		if href == "" {
			return BookReview{}, fmt.Errorf("%w: book link", ErrMissingField)
		}
		out.BookID, err = bookIDFromURL(href)
		if err != nil {
			return BookReview{}, fmt.Errorf("book link: %w", err)
		}
		out.EditionID, err = editionIDFromURL(href)
		if err != nil {
			return BookReview{}, fmt.Errorf("book link: %w", err)
		}
	}

	if txt, ok := sel.Find("star-rating").First().Attr("rate"); ok {
		if v, err := strconv.ParseFloat(txt, 64); err == nil {
			out.Rating = v
		}
	}

	comment := sel.Find("div[id^=resenhac]").First()
	if comment.Length() > 0 {
		span := comment.Find("span").First()
		if span.Length() > 0 {
			if d, err := time.Parse("02/01/2006", htmlutil.Clean(span.Text())); err == nil {
				out.ReviewedAt = d
			}
			var parts []string
			for node := span.Nodes[0].NextSibling; node != nil; node = node.NextSibling {
				if node.Type != html.ElementNode {
					continue
				}
				if txt := htmlutil.Clean(htmlutil.Text(node)); txt != "" {
					parts = append(parts, txt)
				}
			}
			out.Text = strings.Join(parts, "\n")
		}
		if out.Text == "" {
			out.Text = htmlutil.Clean(comment.Text())
		}
	}
	return out, nil
}

var bookHref = regexp.MustCompile(`\d+ed\d+\.html`)

func findHref(sel *goquery.Selection, match func(string) bool) string {
	href := ""
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := a.AttrOr("href", "")
		if h != "" && match(h) {
			href = h
			return false
		}
		return true
	})
	return href
}

// editionFromBookMenu reads which edition a book page belongs to from
// its navigation menu.
func editionFromBookMenu(doc *goquery.Document) int {
	href := doc.Find("div#pg-livro-menu-principal-container a").First().AttrOr("href", "")
	if href == "" {
		return 0
	}
	id, err := editionIDFromURL(href)
	if err != nil {
		return 0
	}
	return id
}

// coverURL normalizes a cover src. The site mixes absolute and
// protocol-relative forms; anything else is dropped.
func coverURL(src string) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.String()
}

// bookPayload is the wire shape of /v1/book responses. The site mixes
// value types on a few fields, the loose types absorb that.
type bookPayload struct {
	BookID      int         `json:"livro_id"`
	EditionID   int         `json:"id"`
	Title       string      `json:"titulo"`
	Subtitle    string      `json:"subtitulo"`
	Series      string      `json:"serie"`
	Volume      looseString `json:"volume"`
	Authors     string      `json:"autor"`
	Description string      `json:"sinopse"`
	Publisher   string      `json:"editora"`
	ISBN        looseString `json:"isbn"`
	Pages       looseInt    `json:"paginas"`
	Year        looseInt    `json:"ano"`
	Month       looseInt    `json:"mes"`
	Language    string      `json:"idioma"`
	URL         string      `json:"url"`
	CoverURL    string      `json:"img_url"`
	Genres      []string    `json:"generos"`
	Stats       *BookStats  `json:"estatisticas"`
}

// toBook applies the placeholder cleanups the site needs: "0" ISBNs
// and volumes mean none, "não especificado" authors mean unknown.
func (p *bookPayload) toBook(s *session) Book {
	book := Book{
		BookID:      p.BookID,
		EditionID:   p.EditionID,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Series:      p.Series,
		Volume:      string(p.Volume),
		Authors:     p.Authors,
		Description: p.Description,
		Publisher:   p.Publisher,
		ISBN:        string(p.ISBN),
		PageCount:   int(p.Pages),
		Year:        int(p.Year),
		Month:       int(p.Month),
		Language:    p.Language,
		URL:         s.absURL(p.URL),
		CoverURL:    coverURL(p.CoverURL),
		Genres:      p.Genres,
		Stats:       p.Stats,
	}
	if book.ISBN == "0" {
		book.ISBN = ""
	}
	if strings.EqualFold(book.Authors, "não especificado") {
		book.Authors = ""
	}
	if book.Volume == "0" {
		book.Volume = ""
	}
	return book
}
