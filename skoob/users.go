package skoob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"goskoob/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const (
	relationPageSize = 100
	bookcasePageSize = 100
)

// UserService reads member profiles, shelves and relations. Every
// method needs a signed-in session.
type UserService struct {
	session *session
}

// GetByID fetches a member profile.
func (s *UserService) GetByID(ctx context.Context, userID int) (User, error) {
	ctx, span := tracer.Start(ctx, "users:GetByID")
	defer span.End()

	if err := s.session.require("users:GetByID"); err != nil {
		return User{}, err
	}
	res, err := s.session.observedGet(ctx, fmt.Sprintf("/v1/user/%d/stats:true", userID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user fetch failed")
		return User{}, err
	}
	env, err := decodeEnvelope("users:GetByID", res)
	if err != nil {
		return User{}, err
	}
	if !env.Success {
		span.SetStatus(codes.Error, "user not found")
		return User{}, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	var user User
	if err := json.Unmarshal(env.Response, &user); err != nil {
		return User{}, &ParseError{Op: "users:GetByID", URL: res.URL, Err: err}
	}
	user.ProfileURL = s.session.absURL(user.ProfileURL)
	return user, nil
}

// GetRelations lists the members linked to a user by the given
// relation, 100 per page.
func (s *UserService) GetRelations(ctx context.Context, userID int, rel Relation, page int) (Page[UserSearchResult], error) {
	ctx, span := tracer.Start(ctx, "users:GetRelations")
	defer span.End()

	if err := s.session.require("users:GetRelations"); err != nil {
		return Page[UserSearchResult]{}, err
	}
	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/%s/listar/%d/page:%d/limit:%d", rel, userID, page, relationPageSize)
	res, err := s.session.observedGet(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relations page fetch failed")
		return Page[UserSearchResult]{}, err
	}
	doc, err := s.session.document("users:GetRelations", res)
	if err != nil {
		return Page[UserSearchResult]{}, err
	}

	schema := ListSchema{Fragment: "div.usuarios-mini-lista-txt"}
	results, dropped, err := extractList(ctx, "users:GetRelations", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (UserSearchResult, error) {
			return s.parseProfileAnchor(sel.Find("a").First())
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relations page layout changed")
		return Page[UserSearchResult]{}, err
	}

	return Page[UserSearchResult]{
		Results:     results,
		Page:        page,
		Limit:       relationPageSize,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// GetReviews lists the reviews a user has published, 50 per page.
func (s *UserService) GetReviews(ctx context.Context, userID, page int) (Page[BookReview], error) {
	ctx, span := tracer.Start(ctx, "users:GetReviews")
	defer span.End()

	if err := s.session.require("users:GetReviews"); err != nil {
		return Page[BookReview]{}, err
	}
	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/estante/resenhas/%d/mpage:%d/limit:%d", userID, page, reviewPageSize)
	res, err := s.session.observedGet(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shelf reviews fetch failed")
		return Page[BookReview]{}, err
	}
	doc, err := s.session.document("users:GetReviews", res)
	if err != nil {
		return Page[BookReview]{}, err
	}

	schema := ListSchema{Fragment: "div[id^=resenha]:not([id^=resenhac])"}
	results, dropped, err := extractList(ctx, "users:GetReviews", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (BookReview, error) {
			return parseReview(sel, 0, 0, userID)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shelf reviews layout changed")
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

// GetReadStats fetches the reading goal summary of a user's current
// year. Users without a goal come back zero-valued.
func (s *UserService) GetReadStats(ctx context.Context, userID int) (ReadStats, error) {
	ctx, span := tracer.Start(ctx, "users:GetReadStats")
	defer span.End()

	if err := s.session.require("users:GetReadStats"); err != nil {
		return ReadStats{}, err
	}
	res, err := s.session.observedGet(ctx, fmt.Sprintf("/v1/meta_stats/%d", userID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read stats fetch failed")
		return ReadStats{}, err
	}
	env, err := decodeEnvelope("users:GetReadStats", res)
	if err != nil {
		return ReadStats{}, err
	}

	stats := ReadStats{UserID: userID}
	if len(env.Response) > 0 && string(env.Response) != "null" {
		if err := json.Unmarshal(env.Response, &stats); err != nil {
			return ReadStats{}, &ParseError{Op: "users:GetReadStats", URL: res.URL, Err: err}
		}
		stats.UserID = userID
	}
	return stats, nil
}

// GetBookcase lists one shelf of a user's bookcase, 100 books per
// page. The endpoint reports the next page itself.
func (s *UserService) GetBookcase(ctx context.Context, userID int, shelf BookcaseShelf, page int) (Page[UserBook], error) {
	ctx, span := tracer.Start(ctx, "users:GetBookcase")
	defer span.End()

	if err := s.session.require("users:GetBookcase"); err != nil {
		return Page[UserBook]{}, err
	}
	if page <= 0 {
		page = 1
	}
	path := fmt.Sprintf("/v1/bookcase/books/%d/shelf_id:%d/page:%d/limit:%d", userID, shelf, page, bookcasePageSize)
	res, err := s.session.observedGet(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bookcase fetch failed")
		return Page[UserBook]{}, err
	}
	env, err := decodeEnvelope("users:GetBookcase", res)
	if err != nil {
		return Page[UserBook]{}, err
	}

	var rows []bookcaseRow
	if len(env.Response) > 0 && string(env.Response) != "null" {
		if err := json.Unmarshal(env.Response, &rows); err != nil {
			return Page[UserBook]{}, &ParseError{Op: "users:GetBookcase", URL: res.URL, Err: err}
		}
	}
	books := make([]UserBook, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.toUserBook(userID))
	}

	return Page[UserBook]{
		Results:     books,
		Total:       env.Paging.Total,
		Page:        page,
		Limit:       bookcasePageSize,
		HasNextPage: env.Paging.NextPage > 0,
	}, nil
}

// Search looks members up by name or handle. Gender and state narrow
// the search when non-empty. A limit of 0 means 100 per page.
func (s *UserService) Search(ctx context.Context, query string, gender Gender, state State, page, limit int) (Page[UserSearchResult], error) {
	ctx, span := tracer.Start(ctx, "users:Search")
	defer span.End()

	if err := s.session.require("users:Search"); err != nil {
		return Page[UserSearchResult]{}, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = relationPageSize
	}
	path := fmt.Sprintf("/usuario/lista/busca:%s/mpage:%d/limit:%d", url.PathEscape(query), page, limit)
	if gender != "" {
		path += fmt.Sprintf("/sexo:%s", gender)
	}
	if state != "" {
		path += fmt.Sprintf("/uf:%s", state)
	}
	res, err := s.session.observedGet(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user search fetch failed")
		return Page[UserSearchResult]{}, err
	}
	doc, err := s.session.document("users:Search", res)
	if err != nil {
		return Page[UserSearchResult]{}, err
	}

	schema := ListSchema{
		Fragment: "div[style*='border: 1px solid #e4e4e4']",
		Marker:   "div.contador",
	}
	results, dropped, err := extractList(ctx, "users:Search", res.URL, doc, schema,
		func(_ int, sel *goquery.Selection) (UserSearchResult, error) {
			return s.parseProfileAnchor(sel.Find("a[href^='/usuario/']").First())
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user search layout changed")
		return Page[UserSearchResult]{}, err
	}

	total, _ := htmlutil.Digits(doc.Find("div.contador").First().Text())
	return Page[UserSearchResult]{
		Results:     results,
		Total:       total,
		Page:        page,
		Limit:       limit,
		HasNextPage: hasNextControl(doc),
		Dropped:     dropped,
	}, nil
}

// parseProfileAnchor turns a /usuario/{id}-{handle} link into a search
// result row.
func (s *UserService) parseProfileAnchor(anchor *goquery.Selection) (UserSearchResult, error) {
	if anchor.Length() == 0 {
		return UserSearchResult{}, fmt.Errorf("%w: profile link", ErrMissingField)
	}
	href := anchor.AttrOr("href", "")
	id, err := userIDFromURL(href)
	if err != nil {
		return UserSearchResult{}, fmt.Errorf("profile link: %w", err)
	}
	return UserSearchResult{
		ID:       id,
		Username: usernameFromURL(href),
		Name:     htmlutil.Clean(anchor.Text()),
		URL:      s.session.absURL(href),
	}, nil
}

// bookcaseRow is the wire shape of one bookcase entry. The flags
// arrive as booleans or 0/1 depending on the endpoint's mood.
type bookcaseRow struct {
	Ranking      *float64 `json:"ranking"`
	Favorito     flag     `json:"favorito"`
	Desejado     flag     `json:"desejado"`
	Troco        flag     `json:"troco"`
	Tenho        flag     `json:"tenho"`
	Emprestei    flag     `json:"emprestei"`
	Meta         looseInt `json:"meta"`
	PaginasLidas looseInt `json:"paginas_lidas"`
	Edicao       struct {
		ID      int `json:"id"`
		LivroID int `json:"livro_id"`
	} `json:"edicao"`
}

func (r *bookcaseRow) toUserBook(userID int) UserBook {
	out := UserBook{
		UserID:    userID,
		BookID:    r.Edicao.LivroID,
		EditionID: r.Edicao.ID,
		Favorite:  bool(r.Favorito),
		Wishlist:  bool(r.Desejado),
		Tradable:  bool(r.Troco),
		Owned:     bool(r.Tenho),
		Loaned:    bool(r.Emprestei),
		GoalYear:  int(r.Meta),
		PagesRead: int(r.PaginasLidas),
	}
	if r.Ranking != nil {
		out.Rating = *r.Ranking
	}
	return out
}
