package skoob

import (
	"context"
	"testing"
	"time"

	"goskoob/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSearchPagination(t *testing.T) {
	cleanup := testutil.Setup(t, "skoob")
	defer cleanup()
	ctx := context.Background()

	server := testutil.FixtureServer(t, map[string]string{
		"/livro/lista/busca:hobbit/tipo:geral/mpage:1": "testdata/search_p1.html",
		"/livro/lista/busca:hobbit/tipo:geral/mpage:2": "testdata/search_p2.html",
		"/livro/lista/busca:hobbit/tipo:geral/mpage:3": "testdata/search_p3.html",
		"/livro/lista/busca:hobbit/tipo:geral/mpage:4": "testdata/search_p4.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Books.Search(ctx, "hobbit", "", 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 4)
	require.Equal(t, 70, page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 30, page.Limit)
	require.True(t, page.HasNextPage)

	page, err = client.Books.Search(ctx, "hobbit", SearchAll, 2)
	require.NoError(t, err)
	require.True(t, page.HasNextPage)

	// 70 results at 30 per page end on page 3
	page, err = client.Books.Search(ctx, "hobbit", SearchAll, 3)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	require.False(t, page.HasNextPage)

	// past the end: the counter still renders, the listing is empty
	page, err = client.Books.Search(ctx, "hobbit", SearchAll, 4)
	require.NoError(t, err)
	require.Empty(t, page.Results)
	require.False(t, page.HasNextPage)
}

func TestSearchParsesResultRows(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/lista/busca:hobbit/tipo:geral/mpage:1": "testdata/search_p1.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Books.Search(ctx, "hobbit", SearchAll, 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 4)

	diff := cmp.Diff(BookSearchResult{
		EditionID: 321,
		BookID:    9,
		Title:     "O Hobbit",
		Publisher: "HarperCollins",
		ISBN:      "9788595084742",
		URL:       server.URL + "/livro/o-hobbit-9ed321.html",
		CoverURL:  "https://cache.skoob.com.br/livros/321/capa_mini.jpg",
		Rating:    4.5,
	}, page.Results[0])
	require.Empty(t, diff)

	// the row without detail spans keeps its identity and loses the rest
	third := page.Results[2]
	require.Equal(t, "Contos Inacabados", third.Title)
	require.Empty(t, third.ISBN)
	require.Empty(t, third.Publisher)

	// Kindle rows carry an ASIN where the ISBN would be
	fourth := page.Results[3]
	require.Equal(t, "B07HY9QXJK", fourth.ISBN)
	require.Zero(t, fourth.Rating)

	// the ad fragment was dropped without failing the page
	require.Len(t, page.Dropped, 1)
	require.Equal(t, 3, page.Dropped[0].Fragment)
	require.ErrorIs(t, page.Dropped[0].Err, ErrMissingField)
}

func TestSearchRejectsRedesignedPage(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/lista/busca:redesign/tipo:geral/mpage:1": "testdata/search_redesigned.html",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Books.Search(ctx, "redesign", SearchAll, 1)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "books:Search", parseErr.Op)
}

func TestSearchClosest(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/lista/busca:duna/tipo:titulo/mpage:1": "testdata/search_duna.html",
	})
	client := newTestClient(t, server.URL)

	best, err := client.Books.SearchClosest(ctx, "duna")
	require.NoError(t, err)
	require.Equal(t, "Duna", best.Title)
	require.Equal(t, 55, best.BookID)
	require.Equal(t, 777, best.EditionID)
}

func TestSearchClosestNoResults(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/lista/busca:nada/tipo:titulo/mpage:1": "testdata/search_p4.html",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Books.SearchClosest(ctx, "nada")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/v1/book/321/stats:true": "testdata/book_321.json",
	})
	client := newTestClient(t, server.URL)

	book, err := client.Books.GetByID(ctx, 321)
	require.NoError(t, err)
	require.Equal(t, 9, book.BookID)
	require.Equal(t, 321, book.EditionID)
	require.Equal(t, "O Hobbit", book.Title)
	require.Equal(t, "Lá e de volta outra vez", book.Subtitle)
	require.Equal(t, "HarperCollins", book.Publisher)
	require.Equal(t, 336, book.PageCount)
	require.Equal(t, 2019, book.Year)
	require.Zero(t, book.Month)
	require.Equal(t, "Português", book.Language)
	require.Equal(t, []string{"Fantasia", "Aventura"}, book.Genres)

	// placeholder values arrive empty
	require.Empty(t, book.ISBN)
	require.Empty(t, book.Authors)
	require.Empty(t, book.Volume)

	require.Equal(t, server.URL+"/livro/o-hobbit-9ed321.html", book.URL)
	require.Equal(t, "https://cache.skoob.com.br/livros/321/capa.jpg", book.CoverURL)

	require.NotNil(t, book.Stats)
	require.Equal(t, 54321, book.Stats.Readers)
	require.Equal(t, 4.3, book.Stats.AverageRating)
	require.Equal(t, 40112, book.Stats.Ratings)
}

func TestGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/v1/book/999/stats:true": "testdata/book_missing.json",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Books.GetByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "Livro não encontrado")
}

func TestGetReviews(t *testing.T) {
	cleanup := testutil.Setup(t, "skoob")
	defer cleanup()
	ctx := context.Background()

	server := testutil.FixtureServer(t, map[string]string{
		"/livro/resenhas/9/mpage:1/limit:50": "testdata/reviews_p1.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Books.GetReviews(ctx, 9, 0, 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	require.Len(t, page.Dropped, 1)
	require.True(t, page.HasNextPage)
	require.Equal(t, 50, page.Limit)

	first := page.Results[0]
	require.Equal(t, 501, first.ReviewID)
	require.Equal(t, 9, first.BookID)
	// the edition came from the page's own menu
	require.Equal(t, 321, first.EditionID)
	require.Equal(t, 77, first.UserID)
	require.Equal(t, 4.5, first.Rating)
	require.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), first.ReviewedAt)
	require.Equal(t, "Uma releitura que só melhora.\nO ritmo dos capítulos em Valfenda continua perfeito.", first.Text)

	second := page.Results[1]
	require.Equal(t, 502, second.ReviewID)
	require.Equal(t, 88, second.UserID)
	require.Equal(t, 3.0, second.Rating)
	require.Empty(t, second.Text)
	require.True(t, second.ReviewedAt.IsZero())
}

func TestGetReviewsExplicitEdition(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/resenhas/99/mpage:1/limit:50/edition:555": "testdata/reviews_empty.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Books.GetReviews(ctx, 99, 555, 1)
	require.NoError(t, err)
	require.Empty(t, page.Results)
	require.False(t, page.HasNextPage)
}

func TestGetReaders(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/livro/leitores/leram/9/limit:500/page:1": "testdata/readers_p1.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Books.GetReaders(ctx, 9, ReadersRead, 0, 1)
	require.NoError(t, err)
	require.Equal(t, []int{11, 22, 44}, page.Results)
	require.Len(t, page.Dropped, 1)
	require.True(t, page.HasNextPage)
	require.Equal(t, 500, page.Limit)
}

func TestCoverURL(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"//cache.skoob.com.br/l/1.jpg":       "https://cache.skoob.com.br/l/1.jpg",
		"https://cache.skoob.com.br/l/2.jpg": "https://cache.skoob.com.br/l/2.jpg",
		"/local/sem-host.jpg":                "",
		"relativo.jpg":                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, coverURL(in), "coverURL(%q)", in)
	}
}
