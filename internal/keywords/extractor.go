// Package keywords implements lexical matching between a query and a
// document: tokenization, stopword filtering and frequency ranking.
//
// Query terms are ranked by how often they occur in the query. Frequency is a
// heuristic for importance, not a relevance signal: a requirement mentioned
// once may matter more than a word repeated in boilerplate.
package keywords

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const defaultMinLength = 2

// Config controls tokenization and filtering.
type Config struct {
	// MinLength is the minimal token length in runes.
	MinLength int
	// Stopwords names the built-in sets to combine.
	Stopwords []string
	// ExtraStopwords are added on top of the selected sets.
	ExtraStopwords []string
}

// Extractor tokenizes text and compares query and document vocabularies.
// It is immutable after construction and safe for concurrent use.
type Extractor struct {
	minLength int
	stopwords map[string]struct{}
}

// Comparison holds the full ranked split of query terms.
type Comparison struct {
	Matched []string
	Missing []string
	// QueryTerms is the number of distinct filtered query tokens.
	QueryTerms int
}

// New creates an Extractor. Unknown stopword set names are rejected.
func New(cfg Config) (*Extractor, error) {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = defaultMinLength
	}

	stopwords := make(map[string]struct{})
	for _, name := range cfg.Stopwords {
		words, ok := stopwordSet(name)
		if !ok {
			return nil, fmt.Errorf("unknown stopword set %q (available: %s)", name, strings.Join(StopwordSets(), ", "))
		}
		for _, w := range words {
			stopwords[w] = struct{}{}
		}
	}

	for _, w := range cfg.ExtraStopwords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			stopwords[w] = struct{}{}
		}
	}

	return &Extractor{minLength: minLength, stopwords: stopwords}, nil
}

// Tokens returns the filtered, lowercased tokens of text in order of appearance.
func (e *Extractor) Tokens(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		tok := normalizeToken(word.String())
		word.Reset()
		if tok == "" || utf8.RuneCountInString(tok) < e.minLength {
			return
		}
		if _, stop := e.stopwords[tok]; stop {
			return
		}
		tokens = append(tokens, tok)
	}

	for _, r := range strings.ToLower(text) {
		if isTokenRune(r) {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// Vocabulary returns the set of filtered tokens of text.
func (e *Extractor) Vocabulary(text string) map[string]struct{} {
	tokens := e.Tokens(text)
	vocab := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		vocab[tok] = struct{}{}
	}
	return vocab
}

// Rank returns the distinct filtered tokens of text ordered by descending
// frequency, then first occurrence, then lexicographically.
func (e *Extractor) Rank(text string) []string {
	type stat struct {
		term  string
		count int
		first int
	}

	stats := make(map[string]*stat)
	for i, tok := range e.Tokens(text) {
		if s, ok := stats[tok]; ok {
			s.count++
			continue
		}
		stats[tok] = &stat{term: tok, count: 1, first: i}
	}

	ordered := make([]*stat, 0, len(stats))
	for _, s := range stats {
		ordered = append(ordered, s)
	}

	slices.SortFunc(ordered, func(a, b *stat) int {
		if a.count != b.count {
			return b.count - a.count
		}
		if a.first != b.first {
			return a.first - b.first
		}
		return strings.Compare(a.term, b.term)
	})

	terms := make([]string, len(ordered))
	for i, s := range ordered {
		terms[i] = s.term
	}
	return terms
}

// Compare splits the ranked query terms into those present in doc and those
// absent from it.
func (e *Extractor) Compare(query, doc string) Comparison {
	ranked := e.Rank(query)
	vocab := e.Vocabulary(doc)

	c := Comparison{QueryTerms: len(ranked)}
	for _, term := range ranked {
		if _, ok := vocab[term]; ok {
			c.Matched = append(c.Matched, term)
		} else {
			c.Missing = append(c.Missing, term)
		}
	}
	return c
}

// Extract returns at most topK matched and topK missing query terms.
// A non-positive topK disables the cap.
func (e *Extractor) Extract(query, doc string, topK int) (matched, missing []string) {
	return e.Compare(query, doc).Top(topK)
}

// Top returns the topK highest ranked matched and missing terms.
func (c Comparison) Top(topK int) (matched, missing []string) {
	return capTerms(c.Matched, topK), capTerms(c.Missing, topK)
}

// LexicalScore is the share of distinct query terms found in the document, 0..100.
func LexicalScore(c Comparison) float64 {
	return float64(len(c.Matched)) / float64(max(1, c.QueryTerms)) * 100
}

func capTerms(terms []string, topK int) []string {
	if terms == nil {
		return []string{}
	}
	if topK > 0 && len(terms) > topK {
		return terms[:topK]
	}
	return terms
}

// isTokenRune keeps technical symbols so that "c++", "c#", ".net", "ci/cd"
// and "node.js" survive tokenization.
func isTokenRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '+', '#', '.', '-', '_', '/':
		return true
	}
	return false
}

func normalizeToken(raw string) string {
	tok := strings.TrimRight(raw, ".-_/")
	tok = strings.TrimLeft(tok, "-_/+#")

	if strings.HasPrefix(tok, ".") {
		rest := strings.TrimLeft(tok, ".")
		r, _ := utf8.DecodeRuneInString(rest)
		if rest == "" || !unicode.IsLetter(r) {
			return ""
		}
		tok = "." + rest
	}

	if strings.IndexFunc(tok, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) == -1 {
		return ""
	}
	return tok
}
