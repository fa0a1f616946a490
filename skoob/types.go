package skoob

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// User is the profile payload returned by the /v1/user endpoints.
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"nome"`
	Nickname     string    `json:"apelido"`
	Abbreviation string    `json:"abbr"`
	ProfileURL   string    `json:"url"`
	Username     string    `json:"skoob"`
	PhotoMini    string    `json:"foto_mini"`
	PhotoSmall   string    `json:"foto_pequena"`
	PhotoMedium  string    `json:"foto_media"`
	PhotoLarge   string    `json:"foto_grande"`
	Premium      bool      `json:"premium"`
	Beta         bool      `json:"beta"`
	About        string    `json:"about"`
	SignupYear   int       `json:"ano"`
	SignupMonth  int       `json:"mes"`
	SignupTerm   string    `json:"termo"`
	Stats        UserStats `json:"estatisticas"`
}

// UserStats mirrors the estatisticas block of a user payload.
type UserStats struct {
	Books            int `json:"livros"`
	Magazines        int `json:"revistas"`
	Comics           int `json:"quadrinhos"`
	Friends          int `json:"amigos"`
	Following        int `json:"seguidos"`
	Followers        int `json:"seguidores"`
	Messages         int `json:"recados"`
	PagesRead        int `json:"paginometro"`
	BooksRead        int `json:"lido"`
	CurrentlyReading int `json:"lendo"`
	WantToRead       int `json:"vouler"`
	Rereading        int `json:"relendo"`
	Abandoned        int `json:"abandonei"`
	Owned            int `json:"tenho"`
	Tradable         int `json:"troco"`
	Loaned           int `json:"emprestados"`
	Favorites        int `json:"favoritos"`
	Wishlist         int `json:"desejados"`
	ReadingGoal      int `json:"meta"`
	Videos           int `json:"videos"`
}

// Book is a full edition record. String fields the site leaves as
// placeholders ("0" ISBNs, "não especificado" authors) arrive empty.
type Book struct {
	BookID      int
	EditionID   int
	Title       string
	Subtitle    string
	Series      string
	Volume      string
	Authors     string
	Description string
	Publisher   string
	ISBN        string
	PageCount   int
	Year        int
	Month       int
	Language    string
	URL         string
	CoverURL    string
	Genres      []string
	Stats       *BookStats
}

// BookStats mirrors the estatisticas block of a book payload.
type BookStats struct {
	Readers          int     `json:"qt_lido"`
	CurrentlyReading int     `json:"qt_lendo"`
	WantToRead       int     `json:"qt_vouler"`
	Rereading        int     `json:"qt_relendo"`
	Abandoned        int     `json:"qt_abandonei"`
	Reviews          int     `json:"qt_resenhas"`
	AverageRating    float64 `json:"ranking"`
	Ratings          int     `json:"qt_avaliadores"`
	Favorites        int     `json:"qt_favoritos"`
	Wishlist         int     `json:"qt_desejados"`
	Tradable         int     `json:"qt_troco"`
	Loaned           int     `json:"qt_emprestados"`
	Owned            int     `json:"qt_tenho"`
	ReadingGoals     int     `json:"qt_meta"`
	FemaleReaders    int     `json:"qt_mulheres"`
	MaleReaders      int     `json:"qt_homens"`
	Shelves          int     `json:"qt_estantes"`
}

// BookSearchResult is one row of a book search or listing page.
// Publisher, ISBN and Rating are optional and stay zero when the row
// does not show them.
type BookSearchResult struct {
	EditionID int
	BookID    int
	Title     string
	Publisher string
	ISBN      string
	URL       string
	CoverURL  string
	Rating    float64
}

// BookReview is one review, scraped from a book's review listing or
// from a user's shelf. ReviewedAt is zero when the fragment carries no
// parseable date.
type BookReview struct {
	ReviewID   int
	BookID     int
	EditionID  int
	UserID     int
	Rating     float64
	Text       string
	ReviewedAt time.Time
}

// UserBook is one row of a bookcase shelf.
type UserBook struct {
	UserID    int
	BookID    int
	EditionID int
	Rating    float64
	Favorite  bool
	Wishlist  bool
	Tradable  bool
	Owned     bool
	Loaned    bool
	GoalYear  int
	PagesRead int
}

// ReadStats is the reading goal summary for one year.
type ReadStats struct {
	UserID          int     `json:"-"`
	Year            int     `json:"ano"`
	BooksRead       int     `json:"lido"`
	PagesRead       int     `json:"paginas_lidas"`
	TotalPages      int     `json:"paginas_total"`
	PercentComplete float64 `json:"percentual_lido"`
	BooksTotal      int     `json:"total"`
	Speed           float64 `json:"velocidade_dia"`
	IdealSpeed      float64 `json:"velocidade_ideal"`
}

// UserSearchResult identifies a user found through search or a
// relation listing.
type UserSearchResult struct {
	ID       int
	Username string
	Name     string
	URL      string
}

// AuthorSearchResult is one author row from the author search page.
type AuthorSearchResult struct {
	ID       int
	Name     string
	Nickname string
	URL      string
	PhotoURL string
}

// AuthorProfile is the scraped author page.
type AuthorProfile struct {
	Name        string
	PhotoURL    string
	Description string
	BirthDate   string
	Location    string
	Links       map[string]string
	Tags        []string
	Stats       AuthorStats
	Books       []BookThumb
}

// AuthorStats aggregates the readership numbers on an author page.
type AuthorStats struct {
	Followers     int
	Readers       int
	Ratings       int
	AverageRating float64
}

// BookThumb is a cover-level reference to a book, used on author and
// publisher pages.
type BookThumb struct {
	Title    string
	URL      string
	CoverURL string
}

// Publisher is the scraped publisher page.
type Publisher struct {
	ID           int
	Name         string
	Description  string
	Website      string
	Stats        PublisherStats
	LastReleases []BookThumb
}

// PublisherStats holds the follower and rating numbers of a publisher
// page.
type PublisherStats struct {
	Followers        int
	AverageRating    float64
	Ratings          int
	MalePercentage   int
	FemalePercentage int
}

// flag accepts the booleans and 0/1 integers the v1 payloads mix for
// the same field.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1", `"1"`:
		*f = true
	default:
		*f = false
	}
	return nil
}

// looseString accepts strings and bare numbers for the same field.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err == nil {
		*s = looseString(v)
		return nil
	}
	*s = looseString(raw)
	return nil
}

// looseInt accepts integers that sometimes arrive quoted or empty.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("not an integer: %q", raw)
	}
	*n = looseInt(v)
	return nil
}
