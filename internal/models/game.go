package models

// Game represents a catalog entry from the upstream games database.
// Records are treated as immutable once received.
type Game struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Released        string          `json:"released"` // YYYY-MM-DD, may be empty
	BackgroundImage string          `json:"background_image,omitempty"`
	Rating          float64         `json:"rating"`
	Metacritic      int             `json:"metacritic"` // 0 means unset
	Playtime        int             `json:"playtime"`
	Platforms       []PlatformEntry `json:"platforms,omitempty"`
	Genres          []Genre         `json:"genres,omitempty"`
	Stores          []StoreEntry    `json:"stores,omitempty"`
	Tags            []Tag           `json:"tags,omitempty"`
	Publishers      []Publisher     `json:"publishers,omitempty"`
	Developers      []Developer     `json:"developers,omitempty"`
}

// Entity is the shared id/name/slug shape of catalog sub-entities
type Entity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type (
	Platform  = Entity
	Genre     = Entity
	Store     = Entity
	Publisher = Entity
	Developer = Entity
)

// Tag is a user-generated label; Language is the upstream tag locale.
type Tag struct {
	Entity
	Language string `json:"language,omitempty"`
}

// PlatformEntry wraps a platform the way the upstream list payload does
type PlatformEntry struct {
	Platform     Platform `json:"platform"`
	ReleasedAt   string   `json:"released_at,omitempty"`
	Requirements any      `json:"requirements,omitempty"`
}

// StoreEntry wraps a store the way the upstream list payload does
type StoreEntry struct {
	ID    int    `json:"id"`
	URL   string `json:"url,omitempty"`
	Store Store  `json:"store"`
}

// ESRBRating is the age rating attached to game details
type ESRBRating struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// GameDetails is the extended record returned by a fetch-by-id
type GameDetails struct {
	Game
	NameOriginal        string      `json:"name_original,omitempty"`
	Description         string      `json:"description,omitempty"`
	DescriptionRaw      string      `json:"description_raw,omitempty"`
	Website             string      `json:"website,omitempty"`
	BackgroundImageAlt  string      `json:"background_image_additional,omitempty"`
	RatingsCount        int         `json:"ratings_count,omitempty"`
	AchievementsCount   int         `json:"achievements_count,omitempty"`
	ScreenshotsCount    int         `json:"screenshots_count,omitempty"`
	RedditURL           string      `json:"reddit_url,omitempty"`
	ESRBRating          *ESRBRating `json:"esrb_rating,omitempty"`
	AlternativeNames    []string    `json:"alternative_names,omitempty"`
	MetacriticURL       string      `json:"metacritic_url,omitempty"`
}

// GamePage is one page of the upstream list query
type GamePage struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Results  []Game `json:"results"`
}

// CatalogGame is a game annotated with its favorite status for rendering
type CatalogGame struct {
	Game
	IsFavorite bool `json:"is_favorite"`
}
