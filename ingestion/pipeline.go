package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// Pipeline chunks source texts and stores the result.
type Pipeline struct {
	sources storage.SourceTextRepository
	chunks  storage.ChunkRepository
	chunker Chunker
	pool    *ants.Pool
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent chunking.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunker replaces the built-in TextChunker.
func WithChunker(chunker Chunker) Option {
	return func(p *Pipeline) error {
		if chunker == nil {
			chunker = TextChunker{}
		}
		p.chunker = chunker
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new chunking pipeline.
func NewPipeline(
	sources storage.SourceTextRepository,
	chunks storage.ChunkRepository,
	opts ...Option,
) (*Pipeline, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		sources: sources,
		chunks:  chunks,
		chunker: TextChunker{},
		pool:    pool,
		logger:  slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Result summarizes a chunking pass.
type Result struct {
	Sources  int
	Chunks   int
	Duration time.Duration
}

// Import stores new source texts and chunks them with config.
func (p *Pipeline) Import(ctx context.Context, config ChunkConfig, texts ...*core.SourceText) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	for _, t := range texts {
		if err := core.ValidateSourceText(t); err != nil {
			return nil, err
		}
	}
	added, err := p.sources.AddSourceTexts(ctx, texts...)
	if err != nil {
		return nil, err
	}
	return p.chunkAll(ctx, config, added)
}

// Rechunk cuts every stored source text again with config, replacing its
// chunks and recording config on the source text.
func (p *Pipeline) Rechunk(ctx context.Context, config ChunkConfig) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	texts, err := p.sources.ListSourceTexts(ctx)
	if err != nil {
		return nil, err
	}
	return p.chunkAll(ctx, config, texts)
}

// chunkAll cuts texts on the pool, then stores the chunks text by text in
// input order.
func (p *Pipeline) chunkAll(ctx context.Context, config ChunkConfig, texts []*core.SourceText) (*Result, error) {
	start := time.Now()
	cut := make([][]Piece, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			cut[i], errs[i] = p.chunker.Chunk(text.Content, config)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	res := &Result{Sources: len(texts)}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks := make([]*core.Chunk, len(cut[i]))
		for j, piece := range cut[i] {
			chunks[j] = &core.Chunk{
				SourceTextId: text.Id,
				ChunkIndex:   j,
				Content:      piece.Content,
				TokenCount:   piece.TokenCount,
				ContentHash:  core.HashContent(piece.Content),
			}
		}
		if _, err := p.chunks.ReplaceSourceChunks(ctx, text.Id, chunks...); err != nil {
			return nil, fmt.Errorf("store chunks of %q: %w", text.Title, err)
		}

		text.ChunkSize = config.Size
		text.ChunkOverlap = config.Overlap
		text.ChunkStrategy = config.Strategy
		if err := p.sources.UpdateSourceText(ctx, text); err != nil {
			return nil, fmt.Errorf("update %q: %w", text.Title, err)
		}
		res.Chunks += len(chunks)
		p.logger.Debug("chunked source text", "title", text.Title, "chunks", len(chunks))
	}

	res.Duration = time.Since(start)
	p.logger.Info("chunked source texts", "sources", res.Sources, "chunks", res.Chunks,
		"config", config.String(), "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
