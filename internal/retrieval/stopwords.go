package retrieval

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords are excluded from gene token matching. Compared lowercase, so
// an all-caps question word such as "WHICH" or "DNA" never counts as a gene.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true,
	// assay and sequence vocabulary that is written in caps but names no gene
	"dna": true, "rna": true, "mrna": true, "snp": true, "gwas": true,
	"mcq": true, "json": true, "id": true,
}

// words splits text on anything that is not a letter, digit or hyphen.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// isGeneLike reports whether w looks like a gene symbol: no lowercase
// letters, at least one uppercase letter, two or more characters.
func isGeneLike(w string) bool {
	if len([]rune(w)) < 2 || stopwords[strings.ToLower(w)] {
		return false
	}
	upper := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper = true
		}
	}
	return upper
}

// geneTokens returns the unique gene-like tokens of text in order. A
// hyphenated word that is not gene-like as a whole ("IL13-driven")
// contributes its gene-like parts.
func geneTokens(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(w string) {
		if !isGeneLike(w) || seen[w] {
			return
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	for _, w := range words(text) {
		w = strings.Trim(w, "-")
		if isGeneLike(w) {
			add(w)
			continue
		}
		for _, part := range strings.Split(w, "-") {
			add(part)
		}
	}
	return tokens
}

// mentionsAny reports whether text contains one of tokens as a whole word
// or as a whole hyphen-separated part of a word. IL13 matches "IL13-driven"
// but not "IL13RA1".
func mentionsAny(text string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	for _, w := range words(text) {
		w = strings.Trim(w, "-")
		if set[w] {
			return true
		}
		for _, part := range strings.Split(w, "-") {
			if set[part] {
				return true
			}
		}
	}
	return false
}

// #endregion stopwords

// #region gene-filter
// filterGenes keeps items whose statement names a gene from the question.
// If none do, the best unfiltered item is kept.
func filterGenes(items []Scored, question string) []Scored {
	if len(items) == 0 {
		return items
	}
	tokens := geneTokens(question)
	var kept []Scored
	for _, it := range items {
		if mentionsAny(it.Statement, tokens) {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return []Scored{best(items)}
	}
	return kept
}

// #endregion gene-filter
