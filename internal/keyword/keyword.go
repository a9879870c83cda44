// Package keyword provides lexical scoring: the keyword overlap score, hashed
// sparse vectors and light query preprocessing.
package keyword

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// Words splits text on whitespace, trims non-alphanumeric runes from both
// ends of each token and lower-cases it. Empty tokens are dropped.
func Words(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, isNotAlphanumeric)
		if w == "" {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return words
}

func isNotAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Score returns the share of text's words that occur among the query's
// whitespace separated terms, in [0, 1].
func Score(query, text string) float32 {
	terms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(query)) {
		terms[t] = struct{}{}
	}
	words := Words(text)
	if len(terms) == 0 || len(words) == 0 {
		return 0
	}

	matches := 0
	for _, w := range words {
		if _, ok := terms[w]; ok {
			matches++
		}
	}
	score := float32(matches) / float32(len(words))
	return min(max(score, 0), 1)
}

// SparseVector hashes the words of text with 32-bit FNV-1a and weights each
// bucket by term frequency. Values are L2-normalised and indices ascending.
func SparseVector(text string) ([]uint32, []float32) {
	words := Words(text)
	if len(words) == 0 {
		return []uint32{}, []float32{}
	}

	counts := make(map[uint32]int)
	for _, w := range words {
		counts[hash(w)]++
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	total := float64(len(words))
	values := make([]float32, len(indices))
	var norm float64
	for i, idx := range indices {
		tf := float64(counts[idx]) / total
		values[i] = float32(tf)
		norm += tf * tf
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range values {
			values[i] = float32(float64(values[i]) / norm)
		}
	}
	return indices, values
}

func hash(word string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(word))
	return h.Sum32()
}
