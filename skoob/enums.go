package skoob

// SearchField selects which index a book search runs against.
type SearchField string

const (
	SearchAll       SearchField = "geral"
	SearchISBN      SearchField = "isbn"
	SearchAuthor    SearchField = "autor"
	SearchPublisher SearchField = "editora"
	SearchTitle     SearchField = "titulo"
	SearchTags      SearchField = "tags"
)

// BookStatus is the reading status a user assigns to an edition.
type BookStatus int

const (
	StatusRead             BookStatus = 1
	StatusCurrentlyReading BookStatus = 2
	StatusWantToRead       BookStatus = 3
	StatusRereading        BookStatus = 4
	StatusAbandoned        BookStatus = 5
)

// BookLabel is a flag toggled on an edition independently of its
// reading status.
type BookLabel int

const (
	LabelOwned    BookLabel = 6
	LabelFavorite BookLabel = 8
	LabelWishlist BookLabel = 9
	LabelTradable BookLabel = 10
	LabelLoaned   BookLabel = 11
)

// ReaderStatus is the URL segment naming a group of readers on a
// book's readers listing.
type ReaderStatus string

const (
	ReadersRead             ReaderStatus = "leram"
	ReadersCurrentlyReading ReaderStatus = "lendo"
	ReadersWantToRead       ReaderStatus = "vaoler"
	ReadersRereading        ReaderStatus = "relendo"
	ReadersAbandoned        ReaderStatus = "abandonaram"
	ReadersFavorited        ReaderStatus = "favoritos"
	ReadersTradable         ReaderStatus = "trocam"
	ReadersWishlisted       ReaderStatus = "desejam"
	ReadersRated            ReaderStatus = "avaliaram"
)

// BookcaseShelf filters a user's virtual bookcase.
type BookcaseShelf int

const (
	ShelfAll              BookcaseShelf = 0
	ShelfRead             BookcaseShelf = 1
	ShelfCurrentlyReading BookcaseShelf = 2
	ShelfWantToRead       BookcaseShelf = 3
	ShelfRereading        BookcaseShelf = 4
	ShelfAbandoned        BookcaseShelf = 5
	ShelfOwned            BookcaseShelf = 6
	ShelfEbook            BookcaseShelf = 7
	ShelfFavorite         BookcaseShelf = 8
	ShelfWishlist         BookcaseShelf = 9
	ShelfTradable         BookcaseShelf = 10
	ShelfLoaned           BookcaseShelf = 11
	ShelfReadingGoal      BookcaseShelf = 12
	ShelfRated            BookcaseShelf = 13
	ShelfReviewed         BookcaseShelf = 14
	ShelfAudiobook        BookcaseShelf = 15
)

// ShelfKind is the physical shelf category an edition belongs to.
type ShelfKind string

const (
	KindComic    ShelfKind = "comic"
	KindBook     ShelfKind = "book"
	KindMagazine ShelfKind = "magazine"
)

// Relation names the user-to-user link types the site exposes.
type Relation string

const (
	RelationFriends   Relation = "amigos"
	RelationFollowing Relation = "seguidos"
	RelationFollowers Relation = "seguidores"
)

// Gender filters user search results.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// State is a Brazilian state code used to filter user searches.
type State string

const (
	Acre             State = "AC"
	Alagoas          State = "AL"
	Amapa            State = "AP"
	Amazonas         State = "AM"
	Bahia            State = "BA"
	Ceara            State = "CE"
	DistritoFederal  State = "DF"
	EspiritoSanto    State = "ES"
	Goias            State = "GO"
	Maranhao         State = "MA"
	MatoGrosso       State = "MT"
	MatoGrossoDoSul  State = "MS"
	MinasGerais      State = "MG"
	Para             State = "PA"
	Paraiba          State = "PB"
	Parana           State = "PR"
	Pernambuco       State = "PE"
	Piaui            State = "PI"
	RioDeJaneiro     State = "RJ"
	RioGrandeDoNorte State = "RN"
	RioGrandeDoSul   State = "RS"
	Rondonia         State = "RO"
	Roraima          State = "RR"
	SantaCatarina    State = "SC"
	SaoPaulo         State = "SP"
	Sergipe          State = "SE"
	Tocantins        State = "TO"
)
