package ingestion

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking strategies.
const (
	StrategySentence  = "sentence"
	StrategyParagraph = "paragraph"
	StrategyRecursive = "recursive"
)

// charsPerToken approximates tokens for mixed German and English text.
const charsPerToken = 3.5

// ChunkConfig describes how a source text is cut. Size and Overlap are in
// estimated tokens.
type ChunkConfig struct {
	Size     int    `json:"chunkSize" yaml:"chunkSize"`
	Overlap  int    `json:"chunkOverlap" yaml:"chunkOverlap"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

// DefaultChunkConfig returns 300 token sentence chunks with 60 tokens overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 300, Overlap: 60, Strategy: StrategySentence}
}

// Validate checks sizes and the strategy name.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, c.Overlap, c.Size)
	}
	switch c.Strategy {
	case StrategySentence, StrategyParagraph, StrategyRecursive:
		return nil
	default:
		return fmt.Errorf("%w: strategy %q", ErrInvalidChunkConfig, c.Strategy)
	}
}

func (c ChunkConfig) String() string {
	return fmt.Sprintf("%dt / %do / %s", c.Size, c.Overlap, c.Strategy)
}

// Piece is one chunk cut from a text.
type Piece struct {
	Content    string
	TokenCount int
}

// Chunker cuts a text into ordered pieces.
type Chunker interface {
	Chunk(text string, config ChunkConfig) ([]Piece, error)
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
}

// TextChunker is the built-in Chunker.
type TextChunker struct{}

var _ Chunker = TextChunker{}

// Chunk implements Chunker. Sentence and paragraph chunks grow unit by unit
// until they reach the target size, and the next chunk starts far enough
// back to repeat at least Overlap tokens. Recursive chunks are produced by
// langchaingo's recursive character splitter.
func (TextChunker) Chunk(text string, config ChunkConfig) ([]Piece, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	targetChars := int(float64(config.Size) * charsPerToken)
	overlapChars := int(float64(config.Overlap) * charsPerToken)

	switch config.Strategy {
	case StrategyParagraph:
		return pieces(mergeUnits(splitParagraphs(text), "\n\n", targetChars, overlapChars)), nil
	case StrategyRecursive:
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(targetChars),
			textsplitter.WithChunkOverlap(overlapChars),
		)
		parts, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("recursive split: %w", err)
		}
		return pieces(parts), nil
	default:
		return pieces(mergeUnits(SplitSentences(text), " ", targetChars, overlapChars)), nil
	}
}

func pieces(parts []string) []Piece {
	out := make([]Piece, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Piece{Content: p, TokenCount: EstimateTokens(p)})
	}
	return out
}

// mergeUnits joins consecutive units into chunks of at least targetChars.
// After each chunk the window restarts at the latest unit from which the
// tail of the chunk holds overlapChars characters.
func mergeUnits(units []string, sep string, targetChars, overlapChars int) []string {
	var chunks []string
	start, size := 0, 0
	for i := range units {
		size += len(units[i])
		if size < targetChars && i < len(units)-1 {
			continue
		}
		chunks = append(chunks, strings.Join(units[start:i+1], sep))

		next := i + 1
		tail := 0
		for j := i; j > start; j-- {
			tail += len(units[j])
			if tail >= overlapChars {
				next = j
				break
			}
		}
		if overlapChars == 0 {
			next = i + 1
		}
		start = next
		size = 0
		for _, u := range units[start : i+1] {
			size += len(u)
		}
	}
	return chunks
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// abbreviations end a word without ending a sentence.
var abbreviations = map[string]bool{
	"z.b": true, "d.h": true, "u.a": true, "o.ä": true, "v.a": true, "i.d.r": true,
	"s.o": true, "s.u": true, "bzgl": true, "bzw": true, "ca": true, "vgl": true,
	"ggf": true, "evtl": true, "usw": true, "etc": true, "inkl": true, "exkl": true,
	"nr": true, "dr": true, "prof": true, "mr": true, "mrs": true, "ms": true,
	"st": true, "abs": true, "art": true, "bd": true, "kap": true, "fig": true,
	"abb": true, "tab": true, "s": true, "aufl": true, "e.g": true, "i.e": true,
}

// SplitSentences splits text after '.', '!' or '?' followed by whitespace,
// keeping common German and English abbreviations inside their sentence.
func SplitSentences(text string) []string {
	words := strings.Fields(text)
	var (
		sentences []string
		current   []string
	)
	for _, w := range words {
		current = append(current, w)
		if !endsSentence(w) {
			continue
		}
		sentences = append(sentences, strings.Join(current, " "))
		current = current[:0]
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " "))
	}
	return sentences
}

func endsSentence(word string) bool {
	last := word[len(word)-1]
	if last != '.' && last != '!' && last != '?' {
		return false
	}
	if last == '.' {
		stem := strings.ToLower(strings.TrimRight(word, "."))
		stem = strings.TrimLeft(stem, "(\"'")
		if abbreviations[stem] {
			return false
		}
	}
	return true
}
