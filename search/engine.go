package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

const (
	defaultCacheSize = 8
	defaultCacheTTL  = 10 * time.Minute
)

// Hit is one ranked search result.
type Hit struct {
	ChunkId     core.ID `json:"chunkId"`
	Similarity  float64 `json:"similarity"`
	ChunkIndex  int     `json:"chunkIndex"`
	Content     string  `json:"content"`
	SourceTitle string  `json:"sourceTitle"`
}

// entry is one chunk vector of a snapshot.
type entry struct {
	chunkID core.ID
	vector  []float32
	norm    float64
}

// snapshot holds every chunk vector of one model generation in chunk
// insertion order.
type snapshot struct {
	entries []entry
}

// Engine performs similarity search over stored chunk embeddings.
type Engine struct {
	embeddings storage.EmbeddingRepository
	chunks     storage.ChunkRepository
	sources    storage.SourceTextRepository
	cache      *expirable.LRU[string, *snapshot]
	cacheSize  int
	cacheTTL   time.Duration
	monitor    Monitor
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithMonitor sets a monitor notified of snapshot loads and searches.
func WithMonitor(monitor Monitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithCache sets how many model snapshots are kept and for how long.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Engine) error {
		if size <= 0 {
			return fmt.Errorf("search: cache size must be positive, got %d", size)
		}
		e.cacheSize = size
		e.cacheTTL = ttl
		return nil
	}
}

// NewEngine creates a new search engine.
func NewEngine(
	embeddings storage.EmbeddingRepository,
	chunks storage.ChunkRepository,
	sources storage.SourceTextRepository,
	opts ...Option,
) (*Engine, error) {
	if embeddings == nil || chunks == nil || sources == nil {
		return nil, ErrRepositoryRequired
	}

	e := &Engine{
		embeddings: embeddings,
		chunks:     chunks,
		sources:    sources,
		cacheSize:  defaultCacheSize,
		cacheTTL:   defaultCacheTTL,
		monitor:    noopMonitor{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.cache = expirable.NewLRU[string, *snapshot](e.cacheSize, nil, e.cacheTTL)
	e.logger = e.logger.With("component", "search")
	return e, nil
}

// Search returns up to topK chunks of model ranked by descending cosine
// similarity to query. A non-zero matryoshkaDim truncates both sides first
// and must be declared by the model. Fewer than topK hits are returned when
// fewer chunks are embedded.
func (e *Engine) Search(ctx context.Context, query []float32, model *core.EmbeddingModel, topK, matryoshkaDim int) ([]Hit, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if err := core.ValidateMatryoshkaDim(model, matryoshkaDim); err != nil {
		return nil, err
	}
	if matryoshkaDim > len(query) {
		return nil, fmt.Errorf("%w: query has %d components, truncation to %d", ErrDimensionMismatch, len(query), matryoshkaDim)
	}

	start := time.Now()
	snap, err := e.snapshot(ctx, model)
	if err != nil {
		return nil, err
	}

	q := Truncate(query, matryoshkaDim)
	qNorm := Norm(q)

	type scored struct {
		pos        int
		similarity float64
	}
	scores := make([]scored, 0, len(snap.entries))
	for i, en := range snap.entries {
		var sim float64
		if matryoshkaDim > 0 {
			if len(en.vector) < matryoshkaDim {
				return nil, fmt.Errorf("%w: chunk %d has %d components, truncation to %d",
					ErrDimensionMismatch, en.chunkID, len(en.vector), matryoshkaDim)
			}
			v := en.vector[:matryoshkaDim]
			sim = cosine(q, v, qNorm, Norm(v))
		} else {
			if len(en.vector) != len(q) {
				return nil, fmt.Errorf("%w: query has %d components, chunk %d has %d",
					ErrDimensionMismatch, len(q), en.chunkID, len(en.vector))
			}
			sim = cosine(q, en.vector, qNorm, en.norm)
		}
		scores = append(scores, scored{pos: i, similarity: sim})
	}

	// Stable sort keeps insertion order among equal similarities.
	slices.SortStableFunc(scores, func(a, b scored) int {
		return cmp.Compare(b.similarity, a.similarity)
	})
	if len(scores) > topK {
		scores = scores[:topK]
	}

	hits := make([]Hit, 0, len(scores))
	titles := make(map[core.ID]string)
	for _, s := range scores {
		chunkID := snap.entries[s.pos].chunkID
		chunk, err := e.chunks.GetChunk(ctx, chunkID)
		if err != nil {
			return nil, fmt.Errorf("load chunk %d: %w", chunkID, err)
		}
		title, ok := titles[chunk.SourceTextId]
		if !ok {
			if src, err := e.sources.GetSourceText(ctx, chunk.SourceTextId); err == nil {
				title = src.Title
			} else {
				e.logger.Debug("source text not found", "sourceTextId", chunk.SourceTextId, "err", err)
			}
			titles[chunk.SourceTextId] = title
		}
		hits = append(hits, Hit{
			ChunkId:     chunkID,
			Similarity:  s.similarity,
			ChunkIndex:  chunk.ChunkIndex,
			Content:     chunk.Content,
			SourceTitle: title,
		})
	}

	e.monitor.Searched(model.Name, len(snap.entries), time.Since(start))
	return hits, nil
}

// Invalidate drops every cached snapshot.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

func (e *Engine) snapshot(ctx context.Context, model *core.EmbeddingModel) (*snapshot, error) {
	gen, err := e.embeddings.Generation(ctx, model.Id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d:%d", model.Id, gen)
	if snap, ok := e.cache.Get(key); ok {
		e.monitor.SnapshotHit(model.Name)
		return snap, nil
	}

	start := time.Now()
	snap := &snapshot{}
	err = e.embeddings.ForEachChunkEmbedding(ctx, model.Id, func(emb *core.ChunkEmbedding) error {
		snap.entries = append(snap.entries, entry{
			chunkID: emb.ChunkId,
			vector:  emb.Vector,
			norm:    Norm(emb.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, snap)
	e.monitor.SnapshotLoaded(model.Name, len(snap.entries), time.Since(start))
	e.logger.Debug("loaded vector snapshot", "model", model.Name, "generation", gen, "vectors", len(snap.entries))
	return snap, nil
}
