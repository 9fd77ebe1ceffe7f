package core

import (
	"encoding/hex"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// IDs are allocated from database sequences starting at 1, so the zero value
// means "absent" wherever an ID field is optional. Allocation order is
// insertion order.
type ID uint64

// HashContent returns the content digest used for embedding cache invalidation.
// It is a hex encoded 128-bit BLAKE2b sum of text. The digest detects changed
// content; it is not treated as a collision-proof identity.
func HashContent(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Role selects which prefix an asymmetric embedding model expects.
type Role string

const (
	// RoleDocument is used for corpus chunks.
	RoleDocument Role = "document"
	// RoleQuery is used for test phrases.
	RoleQuery Role = "query"
)

// Scope selects what an embedding job refreshes.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeChunks  Scope = "chunks"
	ScopePhrases Scope = "phrases"
)

// IncludesChunks reports whether the scope covers chunk embeddings.
func (s Scope) IncludesChunks() bool { return s == ScopeAll || s == ScopeChunks }

// IncludesPhrases reports whether the scope covers phrase embeddings.
func (s Scope) IncludesPhrases() bool { return s == ScopeAll || s == ScopePhrases }

// SourceText is a document that has been split into chunks.
// The chunk configuration fields record how the current chunks were produced.
type SourceText struct {
	Id            ID
	Title         string
	Content       string
	ChunkSize     int
	ChunkOverlap  int
	ChunkStrategy string
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// Chunk is a contiguous piece of a source text. Chunks are immutable; when a
// source text is re-chunked all of its chunks are replaced.
type Chunk struct {
	Id           ID
	SourceTextId ID
	ChunkIndex   int // 0-based position within the source text
	Content      string
	TokenCount   int
	ContentHash  string // empty when no digest was recorded
	InsertedAt   time.Time
}

// EmbeddingModel describes an embedding backend model.
type EmbeddingModel struct {
	Id             ID
	Name           string
	Provider       string // "ollama", "lmstudio", "openai"
	ProviderURL    string
	Dimensions     int
	QueryPrefix    string
	DocumentPrefix string
	// MatryoshkaDimensions lists the truncation sizes the model supports,
	// in ascending order. Empty when the model does not support truncation.
	MatryoshkaDimensions []int
	InsertedAt           time.Time
}

// Prefix returns the text prepended to inputs embedded in the given role.
func (m *EmbeddingModel) Prefix(role Role) string {
	if role == RoleQuery {
		return m.QueryPrefix
	}
	return m.DocumentPrefix
}

// SupportsDimension reports whether dim is one of the declared Matryoshka sizes.
func (m *EmbeddingModel) SupportsDimension(dim int) bool {
	return slices.Contains(m.MatryoshkaDimensions, dim)
}

// ChunkEmbedding is the vector of one chunk under one model. At most one
// exists per (ChunkId, ModelId).
type ChunkEmbedding struct {
	ChunkId     ID
	ModelId     ID
	Vector      []float32
	ContentHash string // snapshot of the chunk hash at embedding time
	UpdatedAt   time.Time
}

// ValidFor reports whether the embedding is still current for chunk. A missing
// hash on either side is never valid.
func (e *ChunkEmbedding) ValidFor(chunk *Chunk) bool {
	if e.ContentHash == "" || chunk.ContentHash == "" {
		return false
	}
	return e.ContentHash == chunk.ContentHash
}

// TestPhrase is a query with an optional ground-truth chunk.
type TestPhrase struct {
	Id              ID
	Phrase          string
	Category        string
	ExpectedChunkId ID     // zero when the phrase has no ground truth
	ExpectedContent string // snapshot of the expected chunk text, used for remapping
	SourceTextId    ID
	InsertedAt      time.Time
}

// HasGroundTruth reports whether the phrase names an expected chunk.
func (p *TestPhrase) HasGroundTruth() bool {
	return p.ExpectedChunkId != 0
}

// PhraseEmbedding is the query vector of one phrase under one model.
type PhraseEmbedding struct {
	PhraseId  ID
	ModelId   ID
	Vector    []float32
	UpdatedAt time.Time
}

// RerankerModel describes a cross-encoder scorer.
type RerankerModel struct {
	Id          ID
	Name        string
	Provider    string
	ProviderURL string
	InsertedAt  time.Time
}

// Metrics holds the aggregate quality of one evaluation run.
type Metrics struct {
	AvgSimilarity float64 `json:"avgSimilarity"`
	TopKAccuracy1 float64 `json:"topKAccuracy1"`
	TopKAccuracy3 float64 `json:"topKAccuracy3"`
	TopKAccuracy5 float64 `json:"topKAccuracy5"`
	MRRScore      float64 `json:"mrrScore"`
	// NDCGScore assumes a single relevant chunk per phrase, so the ideal DCG
	// is 1. It is not a multi-relevance nDCG.
	NDCGScore float64 `json:"ndcgScore"`
}

// RunStatus is the lifecycle state of an evaluation run.
type RunStatus string

const (
	RunCreated  RunStatus = "created"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunError    RunStatus = "error"
)

// EvalRun is the record of one evaluation pass. Chunk configuration fields
// describe the corpus at evaluation time. Only FinalizeRun mutates a run.
type EvalRun struct {
	Id            ID
	ModelId       ID
	RerankerId    ID // zero when no reranker was used
	MatryoshkaDim int
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
	ChunkStrategy string
	TotalChunks   int
	// TotalPhrases counts the ground-truthed phrases the run considered.
	// Metrics are means over EvaluatedPhrases of them; ExcludedPhrases were
	// skipped. A cancelled run leaves the rest unvisited.
	TotalPhrases     int
	EvaluatedPhrases int
	ExcludedPhrases  int
	Metrics          Metrics
	AvgLatencyMs     float64
	Status           RunStatus
	CreatedAt        time.Time
	FinalizedAt      time.Time
}

// EvalResult is the outcome of one phrase in one run.
// RetrievedChunkIds and Similarities are parallel, rank 1 first.
type EvalResult struct {
	RunId             ID
	PhraseId          ID
	RetrievedChunkIds []ID
	Similarities      []float64
	ExpectedChunkRank int // 1-based; zero iff IsHit is false
	IsHit             bool
	LatencyMs         float64
}

// JobSummary records the outcome of the latest embedding job of a model.
type JobSummary struct {
	ModelId         ID
	Scope           Scope
	ChunksEmbedded  int
	ChunksSkipped   int
	PhrasesEmbedded int
	FailedBatches   int
	DurationMs      int64
	Cancelled       bool
	UpdatedAt       time.Time
}
