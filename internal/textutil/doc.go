// Package textutil provides text normalization and similarity helpers shared
// by filename parsing, series grouping, and match scoring.
//
// Normalization folds diacritics (so "Pokémon" compares equal to "Pokemon"),
// lowercases, rewrites "&" and "+" to "and", and collapses punctuation into
// single spaces. Similarity combines an edit-distance ratio with a token
// cosine over term-frequency vectors so both typos and reordered words
// score sensibly.
package textutil
