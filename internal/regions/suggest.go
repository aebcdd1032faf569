package regions

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// SuggestThreshold is the minimum normalized similarity for a "did you mean" candidate
const SuggestThreshold = 0.6

type scored struct {
	name  string
	score float64
}

// Suggest ranks candidates by edit-distance similarity to query. Candidates
// that contain the query (or are contained by it) are always included.
// At most limit names are returned, best first.
func Suggest(query string, candidates []string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	var ranked []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if seen[lc] || lc == q {
			continue
		}
		seen[lc] = true

		score := levenshtein.Similarity(q, lc, nil)
		if strings.Contains(lc, q) || strings.Contains(q, lc) {
			// substring hits rank just below near-identical spellings
			if score < SuggestThreshold {
				score = SuggestThreshold
			}
		}
		if score < SuggestThreshold {
			continue
		}
		ranked = append(ranked, scored{name: c, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}
