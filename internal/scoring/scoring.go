package scoring

import "sort"

// ScoredCandidate pairs a Candidate with its computed score and
// breakdown string.
type ScoredCandidate struct {
	Candidate Candidate
	Score     int
	Breakdown string
}

// BestResultMatchingProfile implements §4.9 best_result_matching_profile:
// keep only candidates matching an enabled tier, score survivors, sort
// descending by score (ties broken by title), return the best. Returns
// ok=false when no candidate survives tier filtering.
func BestResultMatchingProfile(candidates []Candidate, profile Profile, instance Instance) (result ScoredCandidate, ok bool) {
	var survivors []Candidate
	for _, c := range candidates {
		if MatchesAnyEnabledTier(c.Title, profile) {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return ScoredCandidate{}, false
	}

	scored := make([]ScoredCandidate, 0, len(survivors))
	for _, c := range survivors {
		score, breakdown := ScoreRelease(c.Title, instance)
		scored = append(scored, ScoredCandidate{Candidate: c, Score: score, Breakdown: breakdown})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Candidate.Title < scored[j].Candidate.Title
	})

	return scored[0], true
}
