// Package rank scores retrieved profile snippets against a job description by
// combining vector similarity, fuzzy keyword overlap, and recency.
package rank

import (
	"sort"
	"strconv"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Weights holds the scoring weights for the combined score. They are a design
// constant, not learned; the defaults favor semantic similarity.
type Weights struct {
	VectorSim float64
	Keyword   float64
	Recency   float64
}

// DefaultWeights returns the standard 0.60/0.25/0.15 split
func DefaultWeights() Weights {
	return Weights{VectorSim: 0.60, Keyword: 0.25, Recency: 0.15}
}

// Scored is a snippet with its ranking signals and combined score. Produced
// transiently during a pipeline run; never persisted.
type Scored struct {
	ID       string
	Metadata map[string]any
	Score    float64
}

// KeywordOverlapScore returns the average fuzzy partial-match ratio between
// the text and each keyword, both lower-cased, in [0,1]. Fuzzy matching lets
// paraphrased terms still contribute. Returns 0 for an empty keyword list.
func KeywordOverlapScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	low := strings.ToLower(text)
	total := 0.0
	for _, keyword := range keywords {
		total += float64(fuzzy.PartialRatio(low, strings.ToLower(keyword))) / 100.0
	}
	return total / float64(len(keywords))
}

// RecencyScore derives a score in [0.3, 1.0] from the 4-digit year prefix of
// the metadata's end_date, falling back to start_date. Year 2000 maps to 0.0
// and 2030 to 1.0 linearly before clamping, so undated entries (0.3) still
// get some credit rather than zero.
func RecencyScore(metadata map[string]any) float64 {
	year := 0
	for _, key := range []string{"end_date", "start_date"} {
		value, _ := metadata[key].(string)
		if len(value) >= 4 {
			if y, err := strconv.Atoi(value[:4]); err == nil {
				year = y
				break
			}
		}
	}

	if year == 0 {
		return 0.3
	}

	score := float64(year-2000) / 30.0
	if score < 0.3 {
		return 0.3
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Combine folds the three signals into one score using the given weights.
// With bounded input signals and the default weights the result is in [0,1].
func Combine(w Weights, vectorSim, keyword, recency float64) float64 {
	return w.VectorSim*vectorSim + w.Keyword*keyword + w.Recency*recency
}

// Sort orders candidates by combined score, descending. Ties keep their
// relative order.
func Sort(candidates []Scored) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
