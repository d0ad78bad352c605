package recognition

import (
	"log"
	"math"
	"sort"
)

// Compare scores two encodings with cosine similarity remapped to [0,1] and
// reports whether the score reaches threshold. empty, mismatched or zero
// encodings never match and score 0.
func Compare(a, b Encoding, threshold float64) (bool, float64) {
	if len(a) == 0 || len(b) == 0 {
		return false, 0
	}
	if len(a) != len(b) {
		log.Printf("recognition: encoding length mismatch: %d vs %d", len(a), len(b))
		return false, 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return false, 0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cosine) {
		return false, 0
	}
	cosine = clamp(cosine, -1, 1)

	score := (cosine + 1) / 2
	return score >= threshold, score
}

// FindSimilar ranks candidates against target and returns only the matches,
// highest score first. candidates with equal scores keep their input order.
func FindSimilar(target Encoding, candidates []Candidate, threshold float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		ok, score := Compare(target, c.Encoding, threshold)
		if ok {
			matches = append(matches, Match{ID: c.ID, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
