package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize splits a title into lowercase word tokens. Single letters are
// dropped but single digits stay, since "Batman 2" and "Batman 3" differ only
// there.
func Tokenize(text string) []string {
	raw := tokenSplit.Split(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if token == "" {
			continue
		}
		if len([]rune(token)) < 2 && (token[0] < '0' || token[0] > '9') {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenVector is a term-frequency vector over a title's tokens.
type TokenVector struct {
	counts map[string]float64
	norm   float64
}

// NewTokenVector returns nil when text has no usable tokens.
func NewTokenVector(text string) *TokenVector {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, c := range counts {
		sum += c * c
	}
	return &TokenVector{counts: counts, norm: math.Sqrt(sum)}
}

// Cosine is the cosine of the angle between two vectors, 0 when either is
// nil.
func Cosine(a, b *TokenVector) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(large.counts) < len(small.counts) {
		small, large = large, small
	}
	var dot float64
	for token, count := range small.counts {
		dot += count * large.counts[token]
	}
	return min(dot/(a.norm*b.norm), 1)
}
