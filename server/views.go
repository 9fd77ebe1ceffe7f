package server

import (
	"time"

	"github.com/poiesic/embedeval/core"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type modelView struct {
	ID                   core.ID   `json:"id"`
	Name                 string    `json:"name"`
	Provider             string    `json:"provider"`
	ProviderURL          string    `json:"providerUrl,omitempty"`
	Dimensions           int       `json:"dimensions"`
	QueryPrefix          string    `json:"queryPrefix,omitempty"`
	DocumentPrefix       string    `json:"documentPrefix,omitempty"`
	MatryoshkaDimensions []int     `json:"matryoshkaDimensions,omitempty"`
	InsertedAt           time.Time `json:"insertedAt"`
}

func newModelView(m *core.EmbeddingModel) modelView {
	return modelView{
		ID:                   m.Id,
		Name:                 m.Name,
		Provider:             m.Provider,
		ProviderURL:          m.ProviderURL,
		Dimensions:           m.Dimensions,
		QueryPrefix:          m.QueryPrefix,
		DocumentPrefix:       m.DocumentPrefix,
		MatryoshkaDimensions: m.MatryoshkaDimensions,
		InsertedAt:           m.InsertedAt,
	}
}

type rerankerView struct {
	ID          core.ID   `json:"id"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	ProviderURL string    `json:"providerUrl,omitempty"`
	InsertedAt  time.Time `json:"insertedAt"`
}

func newRerankerView(r *core.RerankerModel) rerankerView {
	return rerankerView{
		ID:          r.Id,
		Name:        r.Name,
		Provider:    r.Provider,
		ProviderURL: r.ProviderURL,
		InsertedAt:  r.InsertedAt,
	}
}

type runView struct {
	ID               core.ID        `json:"id"`
	ModelID          core.ID        `json:"modelId"`
	RerankerID       core.ID        `json:"rerankerId,omitempty"`
	MatryoshkaDim    int            `json:"matryoshkaDim,omitempty"`
	TopK             int            `json:"topK"`
	ChunkSize        int            `json:"chunkSize,omitempty"`
	ChunkOverlap     int            `json:"chunkOverlap"`
	ChunkStrategy    string         `json:"chunkStrategy,omitempty"`
	TotalChunks      int            `json:"totalChunks"`
	TotalPhrases     int            `json:"totalPhrases"`
	EvaluatedPhrases int            `json:"evaluatedPhrases"`
	ExcludedPhrases  int            `json:"excludedPhrases"`
	Metrics          core.Metrics   `json:"metrics"`
	AvgLatencyMs     float64        `json:"avgLatencyMs"`
	Status           core.RunStatus `json:"status"`
	CreatedAt        time.Time      `json:"createdAt"`
	FinalizedAt      *time.Time     `json:"finalizedAt,omitempty"`
}

func newRunView(r *core.EvalRun) runView {
	v := runView{
		ID:               r.Id,
		ModelID:          r.ModelId,
		RerankerID:       r.RerankerId,
		MatryoshkaDim:    r.MatryoshkaDim,
		TopK:             r.TopK,
		ChunkSize:        r.ChunkSize,
		ChunkOverlap:     r.ChunkOverlap,
		ChunkStrategy:    r.ChunkStrategy,
		TotalChunks:      r.TotalChunks,
		TotalPhrases:     r.TotalPhrases,
		EvaluatedPhrases: r.EvaluatedPhrases,
		ExcludedPhrases:  r.ExcludedPhrases,
		Metrics:          r.Metrics,
		AvgLatencyMs:     r.AvgLatencyMs,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
	if !r.FinalizedAt.IsZero() {
		v.FinalizedAt = &r.FinalizedAt
	}
	return v
}

type resultView struct {
	PhraseID          core.ID   `json:"phraseId"`
	Phrase            string    `json:"phrase,omitempty"`
	Category          string    `json:"category,omitempty"`
	RetrievedChunkIDs []core.ID `json:"retrievedChunkIds"`
	Similarities      []float64 `json:"similarities"`
	ExpectedRank      *int      `json:"expectedRank"`
	IsHit             bool      `json:"isHit"`
	LatencyMs         float64   `json:"latencyMs"`
}

// newResultView fills in the phrase text when phrase is not nil.
func newResultView(r *core.EvalResult, phrase *core.TestPhrase) resultView {
	v := resultView{
		PhraseID:          r.PhraseId,
		RetrievedChunkIDs: r.RetrievedChunkIds,
		Similarities:      r.Similarities,
		IsHit:             r.IsHit,
		LatencyMs:         r.LatencyMs,
	}
	if r.IsHit {
		rank := r.ExpectedChunkRank
		v.ExpectedRank = &rank
	}
	if phrase != nil {
		v.Phrase = phrase.Phrase
		v.Category = phrase.Category
	}
	return v
}
