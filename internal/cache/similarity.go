package cache

import (
	"github.com/agnivade/levenshtein"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const (
	topicWeight  = 0.6
	windowWeight = 0.3
	bucketWeight = 0.1

	// topicMatchFloor is the minimum edit similarity for two tags to pair up.
	topicMatchFloor = 0.8
)

// Similarity scores two feature sets in [0,1]. Different scopes never match.
func Similarity(a, b domain.Features) float64 {
	if a.Scope != b.Scope {
		return 0
	}

	score := topicWeight*topicOverlap(a.Topics, b.Topics) + windowWeight*windowOverlap(a, b)
	if a.Bucket == b.Bucket {
		score += bucketWeight
	}
	return score
}

// topicOverlap is a soft Jaccard index where near-identical spellings count
// as shared tags, weighted by their edit similarity.
func topicOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	used := make([]bool, len(b))
	var matched float64
	var pairs int

	for _, ta := range a {
		bestIdx := -1
		var best float64
		for j, tb := range b {
			if used[j] {
				continue
			}
			if sim := stringSimilarity(ta, tb); sim >= topicMatchFloor && sim > best {
				best, bestIdx = sim, j
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			matched += best
			pairs++
		}
	}

	union := len(a) + len(b) - pairs
	if union == 0 {
		return 0
	}
	return matched / float64(union)
}

func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// windowOverlap is the intersection over union of the two time windows.
func windowOverlap(a, b domain.Features) float64 {
	start := a.From
	if b.From.After(start) {
		start = b.From
	}
	end := a.To
	if b.To.Before(end) {
		end = b.To
	}

	unionStart := a.From
	if b.From.Before(unionStart) {
		unionStart = b.From
	}
	unionEnd := a.To
	if b.To.After(unionEnd) {
		unionEnd = b.To
	}

	union := unionEnd.Sub(unionStart)
	if union <= 0 {
		if a.From.Equal(b.From) && a.To.Equal(b.To) {
			return 1
		}
		return 0
	}
	if !end.After(start) {
		return 0
	}
	return float64(end.Sub(start)) / float64(union)
}
