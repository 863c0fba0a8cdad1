package enrich

import (
	"strconv"
	"strings"

	"github.com/reeldata/marquee/internal/model"
	"github.com/reeldata/marquee/pkg/omdb"
)

// toMetadata converts the raw API movie into the typed metadata the staging
// layer persists.
func toMetadata(m *omdb.Movie) *model.MovieMetadata {
	return &model.MovieMetadata{
		Title:      m.Title,
		Year:       m.Year,
		Rated:      m.Rated,
		Released:   m.Released,
		Runtime:    m.Runtime,
		Genre:      m.Genre,
		Director:   m.Director,
		Actors:     m.Actors,
		Plot:       m.Plot,
		Language:   m.Language,
		Country:    m.Country,
		Awards:     m.Awards,
		PosterURL:  m.Poster,
		Metascore:  parseInt(m.Metascore),
		IMDBRating: parseFloat(m.IMDBRating),
		IMDBVotes:  parseInt(strings.ReplaceAll(m.IMDBVotes, ",", "")),
		IMDBID:     m.IMDBID,
		BoxOffice:  m.BoxOffice,
	}
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
