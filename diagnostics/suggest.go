package diagnostics

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Suggest returns the closest match to name among candidates using
// ranked fuzzy matching, or "" if nothing is close enough to be a
// useful hint. Grounded on the teacher's planner using fuzzysearch to
// propose near-miss names; here it backs the "did you mean" hints on
// E_UNBOUND, E_UNKNOWN_FN, E_UNKNOWN_TOOL, E_UNKNOWN_CAP and
// E_UNKNOWN_BUDGET diagnostics.
func Suggest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	best := ranks[0]
	// A distance larger than half the name's length plus two is not a useful
	// suggestion; reject it rather than propose noise.
	if best.Distance > len(name)/2+2 {
		return ""
	}
	return best.Target
}

// SuggestHint formats Suggest's result as a ready-to-use hint string,
// or "" if there is no good suggestion.
func SuggestHint(name string, candidates []string) string {
	s := Suggest(name, candidates)
	if s == "" {
		return ""
	}
	return "did you mean '" + s + "'?"
}
