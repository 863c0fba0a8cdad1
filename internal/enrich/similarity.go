package enrich

import (
	"regexp"
	"strings"

	"github.com/reeldata/marquee/internal/cache"
	"github.com/reeldata/marquee/pkg/omdb"
)

var (
	// tokenPattern splits normalized titles into letter and digit runs, so
	// glued forms like "Express2017" still tokenize cleanly.
	tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)
	// yearToken matches a bare release-year token, which is noise for
	// matching purposes.
	yearToken = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// titleTokens returns the normalized comparison tokens for a title,
// dropping embedded release years.
func titleTokens(s string) []string {
	tokens := tokenPattern.FindAllString(cache.Normalize(s), -1)
	out := tokens[:0]
	for _, tok := range tokens {
		if yearToken.MatchString(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// searchQuery builds the free-text query for the fallback search: the
// normalized title with year noise removed.
func searchQuery(title string) string {
	return strings.Join(titleTokens(title), " ")
}

// bestHit returns the search hit most similar to the queried title, with its
// score. Returns nil when there are no hits.
func bestHit(title string, hits []omdb.SearchHit) (*omdb.SearchHit, float64) {
	var (
		best  *omdb.SearchHit
		score float64
	)
	for i := range hits {
		if s := titleSimilarity(title, hits[i].Title); best == nil || s > score {
			best = &hits[i]
			score = s
		}
	}
	return best, score
}

// titleSimilarity computes Jaccard similarity on normalized token sets.
func titleSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA)
	for w := range wordsB {
		if !wordsA[w] {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	tokens := titleTokens(s)
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}
