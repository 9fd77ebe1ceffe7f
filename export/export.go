// Package export writes evaluation runs to Parquet files for offline
// analysis.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// ResultRow is the Parquet schema of one phrase result. Run columns repeat
// on every row so a file can be analysed on its own.
type ResultRow struct {
	RunID             int64     `parquet:"run_id"`
	Model             string    `parquet:"model"`
	Provider          string    `parquet:"provider"`
	Dimensions        int32     `parquet:"dimensions"`
	MatryoshkaDim     int32     `parquet:"matryoshka_dim"`
	RerankerID        int64     `parquet:"reranker_id"`
	TopK              int32     `parquet:"top_k"`
	ChunkSize         int32     `parquet:"chunk_size"`
	ChunkOverlap      int32     `parquet:"chunk_overlap"`
	ChunkStrategy     string    `parquet:"chunk_strategy"`
	RunCreatedAt      time.Time `parquet:"run_created_at"`
	PhraseID          int64     `parquet:"phrase_id"`
	Phrase            string    `parquet:"phrase"`
	Category          string    `parquet:"category"`
	ExpectedChunkID   int64     `parquet:"expected_chunk_id"`
	ExpectedRank      int32     `parquet:"expected_rank"`
	IsHit             bool      `parquet:"is_hit"`
	LatencyMs         float64   `parquet:"latency_ms"`
	RetrievedChunkIDs []int64   `parquet:"retrieved_chunk_ids"`
	Similarities      []float64 `parquet:"similarities"`
}

// Rows flattens a run and its results. Phrases missing from phrases keep
// empty text columns.
func Rows(run *core.EvalRun, model *core.EmbeddingModel, results []*core.EvalResult, phrases map[core.ID]*core.TestPhrase) []ResultRow {
	rows := make([]ResultRow, len(results))
	for i, res := range results {
		row := ResultRow{
			RunID:             int64(run.Id),
			MatryoshkaDim:     int32(run.MatryoshkaDim),
			RerankerID:        int64(run.RerankerId),
			TopK:              int32(run.TopK),
			ChunkSize:         int32(run.ChunkSize),
			ChunkOverlap:      int32(run.ChunkOverlap),
			ChunkStrategy:     run.ChunkStrategy,
			RunCreatedAt:      run.CreatedAt,
			PhraseID:          int64(res.PhraseId),
			ExpectedRank:      int32(res.ExpectedChunkRank),
			IsHit:             res.IsHit,
			LatencyMs:         res.LatencyMs,
			RetrievedChunkIDs: make([]int64, len(res.RetrievedChunkIds)),
			Similarities:      res.Similarities,
		}
		for j, id := range res.RetrievedChunkIds {
			row.RetrievedChunkIDs[j] = int64(id)
		}
		if model != nil {
			row.Model = model.Name
			row.Provider = model.Provider
			row.Dimensions = int32(model.Dimensions)
		}
		if p, ok := phrases[res.PhraseId]; ok {
			row.Phrase = p.Phrase
			row.Category = p.Category
			row.ExpectedChunkID = int64(p.ExpectedChunkId)
		}
		rows[i] = row
	}
	return rows
}

// WriteRun writes the rows of a run to path, creating parent directories.
func WriteRun(path string, run *core.EvalRun, model *core.EmbeddingModel, results []*core.EvalResult, phrases map[core.ID]*core.TestPhrase) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return parquet.WriteFile(path, Rows(run, model, results, phrases))
}

// ReadRun reads the rows written by WriteRun.
func ReadRun(path string) ([]ResultRow, error) {
	return parquet.ReadFile[ResultRow](path)
}

// Stores groups the repositories ExportRun reads.
type Stores struct {
	Evals   storage.EvalRepository
	Models  storage.ModelRepository
	Phrases storage.PhraseRepository
}

// ExportRun loads a run with its results and writes it to path. It returns
// the number of rows written.
func ExportRun(ctx context.Context, stores Stores, runID core.ID, path string) (int, error) {
	run, err := stores.Evals.GetRun(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("load run %d: %w", runID, err)
	}
	results, err := stores.Evals.ListResults(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("load results of run %d: %w", runID, err)
	}

	model, err := stores.Models.GetEmbeddingModel(ctx, run.ModelId)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	phrases := make(map[core.ID]*core.TestPhrase, len(results))
	for _, res := range results {
		p, err := stores.Phrases.GetPhrase(ctx, res.PhraseId)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		phrases[p.Id] = p
	}

	if err := WriteRun(path, run, model, results, phrases); err != nil {
		return 0, err
	}
	return len(results), nil
}
