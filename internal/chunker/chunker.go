package chunker

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxSize         = 1000
	DefaultOverlapFraction = 0.15
)

var (
	blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n\s*`)
	lineBreak = regexp.MustCompile(`\n\s*`)
	word      = regexp.MustCompile(`\S+`)
)

// Config bounds chunk sizes.
type Config struct {
	// MaxSize is the maximal amount of new content per chunk, in runes.
	MaxSize int
	// OverlapFraction is the share of the previous chunk's words repeated at
	// the start of the next chunk. Must be in [0, 1).
	OverlapFraction float64
}

// Chunk is a contiguous span of a document. Start and End are byte offsets
// into the document text; the first Overlap bytes repeat the tail of the
// previous chunk.
type Chunk struct {
	DocumentID string
	Ordinal    int
	Text       string
	Start      int
	End        int
	Overlap    int
}

// Chunker splits documents into order-preserving chunks. It holds no
// per-document state and is safe for concurrent use.
type Chunker struct {
	maxSize int
	overlap float64
}

func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("chunk max size must be positive, got %d", c.MaxSize)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 || math.IsNaN(c.OverlapFraction) {
		return fmt.Errorf("chunk overlap must be in [0, 1), got %v", c.OverlapFraction)
	}
	return nil
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{maxSize: cfg.MaxSize, overlap: cfg.OverlapFraction}, nil
}

// Default returns a chunker with the default configuration.
func Default() *Chunker {
	return &Chunker{maxSize: DefaultMaxSize, overlap: DefaultOverlapFraction}
}

type span struct {
	start, end int
	size       int
}

// Chunk packs whole paragraphs greedily until MaxSize would be exceeded. A
// paragraph larger than MaxSize becomes its own chunk. Whitespace-only text
// yields no chunks.
func (c *Chunker) Chunk(documentID, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := split(text)

	var chunks []Chunk
	var current []span
	size := 0

	flush := func() {
		if len(current) == 0 {
			return
		}

		start, end := current[0].start, current[len(current)-1].end
		overlap := 0
		if len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			overlap = start - c.overlapStart(text, prev.Start+prev.Overlap, prev.End)
		}

		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Ordinal:    len(chunks),
			Text:       strings.TrimSpace(text[start-overlap : end]),
			Start:      start - overlap,
			End:        end,
			Overlap:    overlap,
		})
		current = current[:0]
		size = 0
	}

	for _, p := range paragraphs {
		if size+p.size > c.maxSize && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		size += p.size
	}
	flush()

	return chunks
}

// overlapStart returns the byte offset where the repeated tail of the
// previous chunk's own content [start, end) begins.
func (c *Chunker) overlapStart(text string, start, end int) int {
	if c.overlap <= 0 {
		return end
	}

	words := word.FindAllStringIndex(text[start:end], -1)
	n := int(c.overlap * float64(len(words)))
	if n == 0 {
		return end
	}
	return start + words[len(words)-n][0]
}

// split partitions text into paragraph spans. Each span owns its trailing
// separator, the first span also owns leading whitespace, so spans cover the
// text without gaps. Texts without blank lines are split by lines.
func split(text string) []span {
	sep := blankLine
	if !sep.MatchString(text) {
		sep = lineBreak
	}

	var spans []span
	prev := 0
	for _, loc := range sep.FindAllStringIndex(text, -1) {
		if strings.TrimSpace(text[prev:loc[0]]) == "" {
			continue
		}
		spans = append(spans, newSpan(text, prev, loc[1]))
		prev = loc[1]
	}

	if prev < len(text) {
		if strings.TrimSpace(text[prev:]) == "" && len(spans) > 0 {
			spans[len(spans)-1].end = len(text)
		} else {
			spans = append(spans, newSpan(text, prev, len(text)))
		}
	}

	return spans
}

func newSpan(text string, start, end int) span {
	return span{start: start, end: end, size: utf8.RuneCountInString(strings.TrimSpace(text[start:end]))}
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return texts
}
