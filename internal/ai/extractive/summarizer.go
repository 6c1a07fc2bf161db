// Package extractive answers questions by selecting the most relevant
// sentences of the retrieved context. It needs no model.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/spigell/cv-matcher/internal/keywords"
)

const DefaultMaxSentences = 3

// questionBoost is added per question term found in a sentence, on top of
// its normalized term frequency.
const questionBoost = 1.0

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

type Summarizer struct {
	extractor    *keywords.Extractor
	maxSentences int
}

func New(extractor *keywords.Extractor, maxSentences int) *Summarizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Summarizer{extractor: extractor, maxSentences: maxSentences}
}

// Summarize keeps the best scoring sentences in their original order.
func (s *Summarizer) Summarize(ctx context.Context, question, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sentences []string
	for _, raw := range sentencePattern.FindAllString(text, -1) {
		if sent := strings.TrimSpace(raw); sent != "" {
			sentences = append(sentences, sent)
		}
	}
	if len(sentences) <= s.maxSentences {
		return strings.Join(sentences, " "), nil
	}

	asked := make(map[string]struct{})
	for _, tok := range s.extractor.Tokens(question) {
		asked[tok] = struct{}{}
	}

	tokens := make([][]string, len(sentences))
	freq := make(map[string]float64)
	var maxFreq float64
	for i, sent := range sentences {
		tokens[i] = s.extractor.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
			maxFreq = math.Max(maxFreq, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i := range sentences {
		var score float64
		for _, tok := range tokens[i] {
			score += freq[tok] / maxFreq
			if _, ok := asked[tok]; ok {
				score += questionBoost
			}
		}
		if n := len(tokens[i]); n > 0 {
			score /= math.Sqrt(float64(n))
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	selected := make([]int, 0, s.maxSentences)
	for _, r := range ranked[:s.maxSentences] {
		selected = append(selected, r.idx)
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}
