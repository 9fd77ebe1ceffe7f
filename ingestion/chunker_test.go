package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fourSentences = "Erster Satz hier. Zweiter Satz hier. Dritter Satz hier. Vierter Satz hier."

func contents(pieces []Piece) []string {
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Content
	}
	return out
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Das ist z.B. ein Test.  Wirklich?\nJa! Ohne Punkt")
	assert.Equal(t, []string{"Das ist z.B. ein Test.", "Wirklich?", "Ja!", "Ohne Punkt"}, got)
}

func TestTextChunker_Sentence(t *testing.T) {
	tests := []struct {
		name    string
		overlap int
		want    []string
	}{
		{
			name:    "no overlap",
			overlap: 0,
			want: []string{
				"Erster Satz hier. Zweiter Satz hier.",
				"Dritter Satz hier. Vierter Satz hier.",
			},
		},
		{
			name:    "one sentence overlap",
			overlap: 5,
			want: []string{
				"Erster Satz hier. Zweiter Satz hier.",
				"Zweiter Satz hier. Dritter Satz hier.",
				"Dritter Satz hier. Vierter Satz hier.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces, err := TextChunker{}.Chunk(fourSentences, ChunkConfig{Size: 10, Overlap: tt.overlap, Strategy: StrategySentence})
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(pieces))
			for _, p := range pieces {
				assert.Equal(t, EstimateTokens(p.Content), p.TokenCount)
			}
		})
	}
}

func TestTextChunker_Paragraph(t *testing.T) {
	text := "Absatz eins.\n\nAbsatz zwei.\n  \nAbsatz drei."

	pieces, err := TextChunker{}.Chunk(text, ChunkConfig{Size: 1, Overlap: 0, Strategy: StrategyParagraph})
	require.NoError(t, err)
	assert.Equal(t, []string{"Absatz eins.", "Absatz zwei.", "Absatz drei."}, contents(pieces))

	pieces, err = TextChunker{}.Chunk(text, ChunkConfig{Size: 100, Overlap: 0, Strategy: StrategyParagraph})
	require.NoError(t, err)
	assert.Equal(t, []string{"Absatz eins.\n\nAbsatz zwei.\n\nAbsatz drei."}, contents(pieces))
}

func TestTextChunker_Recursive(t *testing.T) {
	text := strings.Repeat("Neuronale Netze lernen Muster aus Daten. ", 30)

	pieces, err := TextChunker{}.Chunk(text, ChunkConfig{Size: 20, Overlap: 0, Strategy: StrategyRecursive})
	require.NoError(t, err)
	assert.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.NotEmpty(t, p.Content)
	}
}

func TestTextChunker_EmptyText(t *testing.T) {
	pieces, err := TextChunker{}.Chunk("  \n ", DefaultChunkConfig())
	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestChunkConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultChunkConfig().Validate())
	assert.ErrorIs(t, ChunkConfig{Size: 0, Strategy: StrategySentence}.Validate(), ErrInvalidChunkConfig)
	assert.ErrorIs(t, ChunkConfig{Size: 100, Overlap: 100, Strategy: StrategySentence}.Validate(), ErrInvalidChunkConfig)
	assert.ErrorIs(t, ChunkConfig{Size: 100, Overlap: -1, Strategy: StrategySentence}.Validate(), ErrInvalidChunkConfig)
	assert.ErrorIs(t, ChunkConfig{Size: 100, Strategy: "semantic"}.Validate(), ErrInvalidChunkConfig)
	assert.Equal(t, "300t / 60o / sentence", DefaultChunkConfig().String())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("äöüß"))
}
