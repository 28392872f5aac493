package tmdb

// Typed response structures for the TMDB endpoints the pipeline consumes.
// Loose payload fields are modeled explicitly here so parsing failures stay
// at this boundary.

// Genre is one TMDB genre tag.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Details is the primary metadata payload for a movie or show. Movie and TV
// responses differ in field names (title/name, release_date/first_air_date);
// both sets are declared and the helpers below pick the right one.
type Details struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Genres           []Genre `json:"genres"`
	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	Status           string  `json:"status"`
	IMDBID           string  `json:"imdb_id"` // movies only; shows need /external_ids
}

// DisplayTitle returns the movie title or show name, whichever is present.
func (d *Details) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Released returns the release or first-air date.
func (d *Details) Released() string {
	if d.ReleaseDate != "" {
		return d.ReleaseDate
	}
	return d.FirstAirDate
}

// HasGenre reports whether any of the wanted genre ids is present.
func (d *Details) HasGenre(wanted []int64) bool {
	for _, g := range d.Genres {
		for _, w := range wanted {
			if g.ID == w {
				return true
			}
		}
	}
	return false
}

// Translation is one localized title/overview pair.
type Translation struct {
	Title    string
	Overview string
}

type translationsResponse struct {
	Translations []struct {
		ISO31661 string `json:"iso_3166_1"`
		ISO6391  string `json:"iso_639_1"`
		Data     struct {
			Title    string `json:"title"`
			Name     string `json:"name"`
			Overview string `json:"overview"`
		} `json:"data"`
	} `json:"translations"`
}

// Video is one trailer/teaser entry.
type Video struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type videosResponse struct {
	Results []Video `json:"results"`
}

// ProviderEntry is one streaming/rent/buy provider in a region bucket.
type ProviderEntry struct {
	ProviderID int64  `json:"provider_id"`
	Name       string `json:"provider_name"`
	LogoPath   string `json:"logo_path"`
	Priority   int    `json:"display_priority"`
}

// RegionProviders buckets one region's providers by category.
type RegionProviders struct {
	Region   string          `json:"-"`
	Flatrate []ProviderEntry `json:"flatrate"`
	Free     []ProviderEntry `json:"free"`
	Ads      []ProviderEntry `json:"ads"`
	Rent     []ProviderEntry `json:"rent"`
	Buy      []ProviderEntry `json:"buy"`
}

type watchProvidersResponse struct {
	Results map[string]RegionProviders `json:"results"`
}

type contentRatingsResponse struct {
	Results []struct {
		ISO31661 string `json:"iso_3166_1"`
		Rating   string `json:"rating"`
	} `json:"results"`
}

type releaseDatesResponse struct {
	Results []struct {
		ISO31661     string `json:"iso_3166_1"`
		ReleaseDates []struct {
			Certification string `json:"certification"`
		} `json:"release_dates"`
	} `json:"results"`
}

// ExternalIDs holds cross-reference identifiers for an item.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int64  `json:"tvdb_id"`
}

// CastMember is one credited cast member.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

type creditsResponse struct {
	Cast []CastMember `json:"cast"`
}

type aggregateCreditsResponse struct {
	Cast []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Order       int    `json:"order"`
		ProfilePath string `json:"profile_path"`
		Roles       []struct {
			Character string `json:"character"`
		} `json:"roles"`
	} `json:"cast"`
}

// RecommendedItem is one entry from /recommendations.
type RecommendedItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

type recommendationsResponse struct {
	Results []RecommendedItem `json:"results"`
}
