package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/storage"
	"gopkg.in/yaml.v3"
)

// PhraseSpec is a test phrase. Expected is a passage of the source text
// that answers the phrase; it selects the ground-truth chunk.
type PhraseSpec struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
	Expected string `yaml:"expected"`
}

// SourceSpec is a source text with its test phrases.
type SourceSpec struct {
	Title   string       `yaml:"title"`
	Content string       `yaml:"content"`
	Phrases []PhraseSpec `yaml:"phrases"`
}

// Corpus is the content of a corpus file. A missing chunking section uses
// ingestion.DefaultChunkConfig.
type Corpus struct {
	Chunking *ingestion.ChunkConfig `yaml:"chunking"`
	Sources  []SourceSpec           `yaml:"sources"`
}

// ParseCorpus decodes a corpus file.
func ParseCorpus(data []byte) (*Corpus, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Corpus
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if c.Chunking == nil {
		def := ingestion.DefaultChunkConfig()
		c.Chunking = &def
	}
	if err := c.Chunking.Validate(); err != nil {
		return nil, err
	}
	for _, s := range c.Sources {
		for _, p := range s.Phrases {
			if p.Phrase == "" {
				return nil, fmt.Errorf("source %q: %w", s.Title, core.ErrInvalidPhrase)
			}
		}
	}
	return &c, nil
}

// LoadCorpus reads and parses a corpus file.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCorpus(data)
}

// ImportResult counts what Import stored.
type ImportResult struct {
	Sources   int
	Chunks    int
	Phrases   int
	Grounded  int
	Unmatched int
}

// Import stores the corpus sources, chunks them and adds the test phrases.
// A phrase's ground truth is the chunk of its source that best matches its
// expected passage. Phrases without a passage, or whose passage matches no
// chunk well enough, are stored without ground truth.
func Import(ctx context.Context, pipeline *ingestion.Pipeline, chunks storage.ChunkRepository, phrases storage.PhraseRepository, c *Corpus) (*ImportResult, error) {
	texts := make([]*core.SourceText, len(c.Sources))
	for i, s := range c.Sources {
		texts[i] = &core.SourceText{Title: s.Title, Content: s.Content}
	}
	chunked, err := pipeline.Import(ctx, *c.Chunking, texts...)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Sources: chunked.Sources, Chunks: chunked.Chunks}
	var batch []*core.TestPhrase
	for i, s := range c.Sources {
		if len(s.Phrases) == 0 {
			continue
		}
		stored, err := chunks.ListChunksBySource(ctx, texts[i].Id)
		if err != nil {
			return nil, err
		}
		candidates := make([]string, len(stored))
		for j, ch := range stored {
			candidates[j] = ch.Content
		}

		for _, p := range s.Phrases {
			phrase := &core.TestPhrase{
				Phrase:          p.Phrase,
				Category:        p.Category,
				ExpectedContent: p.Expected,
				SourceTextId:    texts[i].Id,
			}
			if p.Expected != "" {
				m, ok := compare.FindBestChunkMatch(p.Expected, candidates)
				if ok && m.Score >= compare.RemapThreshold {
					phrase.ExpectedChunkId = stored[m.Index].Id
					res.Grounded++
				} else {
					res.Unmatched++
				}
			}
			batch = append(batch, phrase)
		}
	}

	if len(batch) > 0 {
		if _, err := phrases.AddPhrases(ctx, batch...); err != nil {
			return nil, err
		}
	}
	res.Phrases = len(batch)
	return res, nil
}
