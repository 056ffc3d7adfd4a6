// Package search implements C6: tokenization, BM25-ranked full-text
// search over the FTS5 index, recency boosting, result filters, and the
// TF-IDF cosine similarity used for "related note" approximation and by
// `compact suggest`.
package search

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "if": true, "in": true, "into": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"such": true, "that": true, "the": true, "their": true, "then": true,
	"there": true, "these": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true,
}

// Tokenize splits text into lowercase, stopword-filtered, stemmed terms.
// It is Unicode-aware: any non-letter, non-digit rune is a boundary,
// matching FTS5's unicode61 tokenizer so query-time and index-time
// tokenization agree (spec §4.3).
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := strings.ToLower(cur.String())
		cur.Reset()
		if stopwords[word] {
			return
		}
		tokens = append(tokens, Stem(word))
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
