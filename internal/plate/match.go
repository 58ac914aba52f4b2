package plate

import "github.com/agext/levenshtein"

// MatchThreshold is the minimum similarity ratio (0-100) for two plates to be
// considered the same vehicle. 85 absorbs common OCR substitutions (0/O, 1/I)
// while rejecting genuinely different plates.
const MatchThreshold = 85

// Match reports whether two raw plate strings refer to the same plate. Both
// inputs are normalized before comparison; empty input never matches.
func Match(a, b string) bool {
	return Ratio(a, b) >= MatchThreshold
}

// Ratio is the edit-distance similarity between two normalized plates on a
// 0-100 scale. Symmetric, and 0 when either side normalizes to empty.
func Ratio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	return levenshtein.Similarity(na, nb, nil) * 100
}
