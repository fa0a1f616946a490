package skoob

import (
	"context"
	"testing"

	"goskoob/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestAuthorSearch(t *testing.T) {
	cleanup := testutil.Setup(t, "skoob")
	defer cleanup()
	ctx := context.Background()

	server := testutil.FixtureServer(t, map[string]string{
		"/autor/lista/busca:tolkien/mpage:1": "testdata/author_search.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Authors.Search(ctx, "tolkien", 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Dropped, 1)
	require.False(t, page.HasNextPage)

	author := page.Results[0]
	require.Equal(t, 111, author.ID)
	require.Equal(t, "J.R.R. Tolkien", author.Name)
	require.Equal(t, "Tolkien", author.Nickname)
	require.Equal(t, server.URL+"/autor/111-j-r-r-tolkien", author.URL)
	require.Equal(t, "https://cache.skoob.com.br/autores/111.jpg", author.PhotoURL)
}

func TestAuthorGetByID(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/autor/111": "testdata/author_profile.html",
	})
	client := newTestClient(t, server.URL)

	profile, err := client.Authors.GetByID(ctx, 111)
	require.NoError(t, err)
	require.Equal(t, "J.R.R. Tolkien", profile.Name)
	require.Equal(t, "https://cache.skoob.com.br/autores/111.jpg", profile.PhotoURL)
	require.Equal(t,
		"John Ronald Reuel Tolkien foi um escritor, professor e filólogo britânico, autor de O Hobbit e O Senhor dos Anéis.",
		profile.Description)
	require.Equal(t, "03/01/1892", profile.BirthDate)
	require.Equal(t, "Bloemfontein, África do Sul", profile.Location)

	require.Equal(t, map[string]string{
		"site":    "https://www.tolkienestate.com",
		"twitter": "https://twitter.com/TolkienSociety",
	}, profile.Links)
	require.Equal(t, []string{"Fantasia", "Clássicos"}, profile.Tags)

	require.Equal(t, 4.4, profile.Stats.AverageRating)
	require.Equal(t, 12345, profile.Stats.Ratings)
	require.Equal(t, 98765, profile.Stats.Readers)
	require.Equal(t, 4321, profile.Stats.Followers)

	require.Len(t, profile.Books, 2)
	require.Equal(t, "O Hobbit", profile.Books[0].Title)
	require.Equal(t, server.URL+"/livro/o-hobbit-9ed321.html", profile.Books[0].URL)
	require.Equal(t, "https://cache.skoob.com.br/livros/321/capa_mini.jpg", profile.Books[0].CoverURL)
}

func TestAuthorGetByIDRedesigned(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/autor/404": "testdata/search_redesigned.html",
	})
	client := newTestClient(t, server.URL)

	_, err := client.Authors.GetByID(ctx, 404)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestAuthorGetBooks(t *testing.T) {
	ctx := context.Background()
	server := testutil.FixtureServer(t, map[string]string{
		"/autor/livros/111/page:1": "testdata/author_books.html",
	})
	client := newTestClient(t, server.URL)

	page, err := client.Authors.GetBooks(ctx, 111, 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	require.Equal(t, 42, page.Total)
	require.True(t, page.HasNextPage)

	// the edition id prefers the fragment's own id attribute
	require.Equal(t, 9, page.Results[0].BookID)
	require.Equal(t, 321, page.Results[0].EditionID)
	require.Equal(t, "O Hobbit", page.Results[0].Title)

	// without one it falls back to the link
	require.Equal(t, 77, page.Results[1].BookID)
	require.Equal(t, 778, page.Results[1].EditionID)
	require.Equal(t, "Contos Inacabados", page.Results[1].Title)

	// and an editionless link falls back to the book id
	require.Equal(t, 13, page.Results[2].BookID)
	require.Equal(t, 13, page.Results[2].EditionID)
}
