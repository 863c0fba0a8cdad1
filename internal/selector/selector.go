// Package selector picks the revenue-weighted subset of titles that gets
// sent for metadata enrichment.
package selector

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/cache"
	"github.com/reeldata/marquee/internal/model"
)

// yearPattern matches a plausible release year embedded in a title, e.g.
// "The Polar Express2017 IMAX Release".
var yearPattern = regexp.MustCompile(`(19\d{2}|20[0-2]\d)`)

// YearHint extracts a 4-digit year from a raw title, or 0 when none is
// present.
func YearHint(title string) int {
	m := yearPattern.FindString(title)
	if m == "" {
		return 0
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}

// TopK aggregates records by normalized title, ranks titles by total revenue
// descending (title ascending on ties, for reproducibility), and returns the
// top k candidates. k <= 0 returns all titles. The result is a pure function
// of the input record set.
func TopK(records []model.RevenueRecord, k int) []model.Candidate {
	type agg struct {
		candidate model.Candidate
	}
	byKey := make(map[string]*agg)

	for _, r := range records {
		key := cache.Normalize(r.Title)
		a, ok := byKey[key]
		if !ok {
			a = &agg{candidate: model.Candidate{
				Title:        r.Title,
				TotalRevenue: decimal.Zero,
				FirstDate:    r.Date,
				LastDate:     r.Date,
				YearHint:     YearHint(r.Title),
			}}
			byKey[key] = a
		}

		a.candidate.TotalRevenue = a.candidate.TotalRevenue.Add(r.Revenue)
		if r.Date.Before(a.candidate.FirstDate) {
			a.candidate.FirstDate = r.Date
		}
		if r.Date.After(a.candidate.LastDate) {
			a.candidate.LastDate = r.Date
		}
	}

	candidates := make([]model.Candidate, 0, len(byKey))
	for _, a := range byKey {
		candidates = append(candidates, a.candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if cmp := candidates[i].TotalRevenue.Cmp(candidates[j].TotalRevenue); cmp != 0 {
			return cmp > 0
		}
		return candidates[i].Title < candidates[j].Title
	})

	if k > 0 && k < len(candidates) {
		candidates = candidates[:k]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	zap.L().Info("selector: ranked titles",
		zap.Int("unique_titles", len(byKey)),
		zap.Int("selected", len(candidates)),
	)

	return candidates
}
