// Package suggest matches a problem description against a small corpus
// of known problems and returns the associated resolution text.
package suggest

import (
	"math"
	"strings"
)

// Entry pairs a known problem with its suggested resolution.
type Entry struct {
	Problem    string
	Suggestion string
}

// DefaultCorpus is the built-in problem/resolution knowledge base.
var DefaultCorpus = []Entry{
	{
		Problem:    "payment failed",
		Suggestion: "Please check your card details and retry. If money was deducted it is auto-refunded within 5 business days.",
	},
	{
		Problem:    "cannot login",
		Suggestion: "Reset your password using the Forgot Password link. Clear the app cache if the problem persists.",
	},
	{
		Problem:    "app crashing",
		Suggestion: "Update to the latest app version and restart your device. Reinstall the app if crashes continue.",
	},
	{
		Problem:    "refund request",
		Suggestion: "Refunds are processed within 5-7 business days after approval. Track the status from the Orders page.",
	},
}

// Index answers nearest-neighbour lookups over a corpus using
// token-frequency cosine similarity.
type Index struct {
	entries   []Entry
	vectors   []map[string]float64
	threshold float64
}

// NewIndex builds an index over the given corpus. Matches scoring below
// threshold are treated as misses.
func NewIndex(corpus []Entry, threshold float64) *Index {
	idx := &Index{
		entries:   corpus,
		vectors:   make([]map[string]float64, len(corpus)),
		threshold: threshold,
	}
	for i, entry := range corpus {
		idx.vectors[i] = termFrequencies(entry.Problem)
	}
	return idx
}

// Nearest returns the suggestion for the corpus entry most similar to
// text, or ok=false when nothing clears the similarity threshold.
func (idx *Index) Nearest(text string) (Entry, bool) {
	query := termFrequencies(text)
	if len(query) == 0 {
		return Entry{}, false
	}

	best := -1
	bestScore := 0.0
	for i, vector := range idx.vectors {
		score := cosine(query, vector)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 || bestScore < idx.threshold {
		return Entry{}, false
	}
	return idx.entries[best], true
}

func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?:;\"'()[]")
		if token == "" {
			continue
		}
		freqs[token]++
	}
	return freqs
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for token, weight := range a {
		normA += weight * weight
		if other, ok := b[token]; ok {
			dot += weight * other
		}
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if dot == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
