package keyword

import (
	"sort"
	"strings"
	"unicode"
)

// NormalizeQuery lower-cases q, keeps only letters, digits and whitespace and
// collapses whitespace runs to single spaces.
func NormalizeQuery(q string) string {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(q))
	return strings.Join(strings.Fields(kept), " ")
}

// Term is a query token with its relative frequency.
type Term struct {
	Text  string
	Score float32
}

// Keywords returns the whitespace tokens of q weighted by frequency / total,
// highest first. Ties are ordered alphabetically.
func Keywords(q string) []Term {
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}

	total := float32(len(tokens))
	terms := make([]Term, 0, len(counts))
	for text, n := range counts {
		terms = append(terms, Term{Text: text, Score: float32(n) / total})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Score != terms[j].Score {
			return terms[i].Score > terms[j].Score
		}
		return terms[i].Text < terms[j].Text
	})
	return terms
}

// MaxCorrectionDistance is the largest edit distance SuggestCorrection accepts.
const MaxCorrectionDistance = 2

// SuggestCorrection returns the vocabulary word closest to token when it is
// within MaxCorrectionDistance edits. The first word at the best distance wins.
func SuggestCorrection(token string, vocab []string) (string, bool) {
	best, bestDist := "", -1
	for _, v := range vocab {
		d := Levenshtein(token, v)
		if d == 0 {
			return v, true
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	if bestDist < 0 || bestDist > MaxCorrectionDistance {
		return "", false
	}
	return best, true
}

// minCorrectable is the shortest token Suggest tries to correct.
const minCorrectable = 4

// Suggest rewrites the normalised query with every token of at least four
// runes that is missing from vocab replaced by its closest correction. It
// reports false when nothing changed.
func Suggest(query string, vocab []string) (string, bool) {
	known := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		known[v] = true
	}
	tokens := strings.Fields(NormalizeQuery(query))
	changed := false
	for i, t := range tokens {
		if known[t] || len([]rune(t)) < minCorrectable {
			continue
		}
		if fix, ok := SuggestCorrection(t, vocab); ok {
			tokens[i] = fix
			changed = true
		}
	}
	if !changed {
		return "", false
	}
	return strings.Join(tokens, " "), true
}

// Levenshtein returns the edit distance between a and b in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	costs := make([]int, len(rb)+1)
	for j := range costs {
		costs[j] = j
	}
	for i, ca := range ra {
		last := i
		costs[0] = i + 1
		for j, cb := range rb {
			next := last
			if ca != cb {
				next++
			}
			last = costs[j+1]
			costs[j+1] = min(costs[j+1]+1, costs[j]+1, next)
		}
	}
	return costs[len(rb)]
}
