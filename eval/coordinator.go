package eval

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/ranking"
	"github.com/poiesic/embedeval/rerank"
	"github.com/poiesic/embedeval/search"
	"github.com/poiesic/embedeval/storage"
)

// Config holds coordinator defaults.
type Config struct {
	// TopK is the number of candidates retrieved per phrase when a request
	// does not name one.
	TopK int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{TopK: 5}
}

// Searcher ranks chunk embeddings against a query vector.
type Searcher interface {
	Search(ctx context.Context, query []float32, model *core.EmbeddingModel, topK, matryoshkaDim int) ([]search.Hit, error)
}

var _ Searcher = (*search.Engine)(nil)

// Stores groups the repositories an evaluation reads and writes.
type Stores struct {
	Sources    storage.SourceTextRepository
	Chunks     storage.ChunkRepository
	Phrases    storage.PhraseRepository
	Models     storage.ModelRepository
	Embeddings storage.EmbeddingRepository
	Evals      storage.EvalRepository
}

// Request selects what a run evaluates. Zero RerankerID and MatryoshkaDim
// disable reranking and truncation. A zero TopK means the configured default.
type Request struct {
	ModelID       core.ID
	RerankerID    core.ID
	MatryoshkaDim int
	TopK          int
}

// Coordinator runs evaluations.
type Coordinator struct {
	stores   Stores
	searcher Searcher
	provider ai.Provider
	config   *Config
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(c *Coordinator) error {
		if config == nil {
			config = DefaultConfig()
		}
		if config.TopK <= 0 {
			return ErrInvalidTopK
		}
		c.config = config
		return nil
	}
}

// WithProvider sets the backend provider used for rerankers.
func WithProvider(provider ai.Provider) Option {
	return func(c *Coordinator) error {
		c.provider = provider
		return nil
	}
}

// WithMonitor sets a monitor notified of evaluated phrases and finished runs.
func WithMonitor(monitor Monitor) Option {
	return func(c *Coordinator) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		c.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates an evaluation coordinator.
func NewCoordinator(stores Stores, searcher Searcher, opts ...Option) (*Coordinator, error) {
	if stores.Sources == nil || stores.Chunks == nil || stores.Phrases == nil ||
		stores.Models == nil || stores.Embeddings == nil || stores.Evals == nil {
		return nil, ErrRepositoryRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	c := &Coordinator{
		stores:   stores,
		searcher: searcher,
		config:   DefaultConfig(),
		monitor:  noopMonitor{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "eval")
	return c, nil
}

type plan struct {
	model         *core.EmbeddingModel
	reranker      ai.Reranker
	rerankerID    core.ID
	matryoshkaDim int
	topK          int
}

// Run validates req and returns the event stream of the run. Unknown models
// or rerankers and unsupported dimensions are returned as errors before any
// work starts.
func (c *Coordinator) Run(ctx context.Context, req Request) (iter.Seq[Event], error) {
	p, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return func(yield func(Event) bool) {
		c.execute(ctx, p, yield)
	}, nil
}

func (c *Coordinator) prepare(ctx context.Context, req Request) (*plan, error) {
	topK := req.TopK
	if topK == 0 {
		topK = c.config.TopK
	}
	if topK < 0 {
		return nil, ErrInvalidTopK
	}

	model, err := c.stores.Models.GetEmbeddingModel(ctx, req.ModelID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownModel, req.ModelID)
	}
	if err != nil {
		return nil, err
	}
	if err := core.ValidateMatryoshkaDim(model, req.MatryoshkaDim); err != nil {
		return nil, err
	}

	p := &plan{model: model, matryoshkaDim: req.MatryoshkaDim, topK: topK}
	if req.RerankerID == 0 {
		return p, nil
	}

	rm, err := c.stores.Models.GetRerankerModel(ctx, req.RerankerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownReranker, req.RerankerID)
	}
	if err != nil {
		return nil, err
	}
	if c.provider == nil {
		return nil, ErrProviderRequired
	}
	if p.reranker, err = c.provider.RerankerFor(rm); err != nil {
		return nil, err
	}
	p.rerankerID = rm.Id
	return p, nil
}

// run carries the state of one executing evaluation.
type run struct {
	*plan
	yield   func(Event) bool
	stopped bool
	titles  map[core.ID]string
	acc     ranking.Accumulator
	result  *Result
	latency time.Duration
}

func (r *run) emit(ev Event) {
	if r.stopped {
		return
	}
	if !r.yield(ev) {
		r.stopped = true
	}
}

func (c *Coordinator) execute(ctx context.Context, p *plan, yield func(Event) bool) {
	r := &run{plan: p, yield: yield, titles: make(map[core.ID]string), result: &Result{}}
	logger := c.logger.With("model", p.model.Name)

	phrases, err := c.groundTruthed(ctx)
	if err != nil {
		r.emit(errorEvent(fmt.Sprintf("failed to load phrases: %v", err)))
		return
	}
	if len(phrases) == 0 {
		r.emit(errorEvent("no test phrases with an expected chunk"))
		return
	}

	evalRun, err := c.createRun(ctx, p)
	if err != nil {
		r.emit(errorEvent(fmt.Sprintf("failed to create run: %v", err)))
		return
	}
	r.result.RunID = evalRun.Id
	r.result.TotalPhrases = len(phrases)
	logger.Info("evaluation started", "run", evalRun.Id, "phrases", len(phrases),
		"topK", p.topK, "matryoshkaDim", p.matryoshkaDim, "reranker", p.rerankerID)

	start := time.Now()
	for i, phrase := range phrases {
		if ctx.Err() != nil || r.stopped {
			break
		}
		r.emit(progressEvent(i+1, len(phrases), fmt.Sprintf("Evaluating phrase %d/%d", i+1, len(phrases))))
		c.evaluatePhrase(ctx, r, evalRun.Id, phrase)
	}

	res := r.result
	res.Metrics = r.acc.Metrics()
	res.CategoryBreakdown = r.acc.Categories()
	res.EvaluatedPhrases = r.acc.Count()
	if res.EvaluatedPhrases > 0 {
		res.AvgLatencyMs = durationMs(r.latency) / float64(res.EvaluatedPhrases)
	}

	cancelled := ctx.Err() != nil || r.stopped
	status := core.RunComplete
	if cancelled {
		status = core.RunError
	}
	_, err = c.stores.Evals.FinalizeRun(context.WithoutCancel(ctx), evalRun.Id, storage.RunOutcome{
		Status:           status,
		Metrics:          res.Metrics,
		TotalPhrases:     res.TotalPhrases,
		EvaluatedPhrases: res.EvaluatedPhrases,
		ExcludedPhrases:  len(res.Excluded),
		AvgLatencyMs:     res.AvgLatencyMs,
	})
	c.monitor.RunFinished(p.model.Name, status)
	logger.Info("evaluation finished", "run", evalRun.Id, "status", status,
		"evaluated", res.EvaluatedPhrases, "excluded", len(res.Excluded),
		"top1", res.TopKAccuracy1, "mrr", res.MRRScore,
		"duration", time.Since(start).Round(time.Millisecond))

	switch {
	case err != nil:
		logger.Error("failed to finalize run", "run", evalRun.Id, "err", err)
		r.emit(errorEvent(fmt.Sprintf("failed to finalize run %d: %v", evalRun.Id, err)))
	case cancelled:
		r.emit(errorEvent(fmt.Sprintf("cancelled after evaluating %d/%d phrases; run %d keeps the partial results",
			res.EvaluatedPhrases+len(res.Excluded), len(phrases), evalRun.Id)))
	default:
		r.emit(completeEvent(res))
	}
}

func (c *Coordinator) groundTruthed(ctx context.Context) ([]*core.TestPhrase, error) {
	phrases, err := c.stores.Phrases.ListPhrases(ctx)
	if err != nil {
		return nil, err
	}
	out := phrases[:0]
	for _, phrase := range phrases {
		if phrase.HasGroundTruth() {
			out = append(out, phrase)
		}
	}
	return out, nil
}

// createRun records the run together with the corpus chunking in effect.
func (c *Coordinator) createRun(ctx context.Context, p *plan) (*core.EvalRun, error) {
	total, err := c.stores.Chunks.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := c.stores.Sources.ListSourceTexts(ctx)
	if err != nil {
		return nil, err
	}

	er := &core.EvalRun{
		ModelId:       p.model.Id,
		RerankerId:    p.rerankerID,
		MatryoshkaDim: p.matryoshkaDim,
		TopK:          p.topK,
		TotalChunks:   total,
	}
	for _, src := range sources {
		if src.ChunkSize > 0 {
			er.ChunkSize = src.ChunkSize
			er.ChunkOverlap = src.ChunkOverlap
			er.ChunkStrategy = src.ChunkStrategy
			break
		}
	}
	return c.stores.Evals.CreateRun(ctx, er)
}

func (c *Coordinator) exclude(r *run, phrase *core.TestPhrase, reason string) {
	r.result.Excluded = append(r.result.Excluded, Exclusion{PhraseId: phrase.Id, Phrase: phrase.Phrase, Reason: reason})
	c.monitor.PhraseEvaluated(r.model.Name, OutcomeExcluded, 0)
}

func (c *Coordinator) evaluatePhrase(ctx context.Context, r *run, runID core.ID, phrase *core.TestPhrase) {
	emb, err := c.stores.Embeddings.GetPhraseEmbedding(ctx, phrase.Id, r.model.Id)
	if errors.Is(err, storage.ErrNotFound) {
		c.exclude(r, phrase, "not embedded")
		r.emit(errorEvent(fmt.Sprintf("no embedding for phrase %q; embed the phrases for %s first", phrase.Phrase, r.model.Name)))
		return
	}
	if err != nil {
		c.exclude(r, phrase, err.Error())
		r.emit(errorEvent(fmt.Sprintf("failed to load embedding for phrase %q: %v", phrase.Phrase, err)))
		return
	}

	start := time.Now()
	hits, err := c.searcher.Search(ctx, emb.Vector, r.model, r.topK, r.matryoshkaDim)
	if err == nil && r.reranker != nil {
		hits, err = rerank.Apply(ctx, r.reranker, phrase.Phrase, hits)
	}
	latency := time.Since(start)
	if err != nil {
		c.exclude(r, phrase, err.Error())
		r.emit(errorEvent(fmt.Sprintf("failed to evaluate phrase %q: %v", phrase.Phrase, err)))
		return
	}

	ids := make([]core.ID, len(hits))
	sims := make([]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkId
		sims[i] = h.Similarity
	}
	rank := ranking.Rank(ids, phrase.ExpectedChunkId)

	err = c.stores.Evals.AddResult(ctx, &core.EvalResult{
		RunId:             runID,
		PhraseId:          phrase.Id,
		RetrievedChunkIds: ids,
		Similarities:      sims,
		ExpectedChunkRank: rank,
		IsHit:             rank > 0,
		LatencyMs:         durationMs(latency),
	})
	if err != nil {
		c.exclude(r, phrase, err.Error())
		r.emit(errorEvent(fmt.Sprintf("failed to store result for phrase %q: %v", phrase.Phrase, err)))
		return
	}

	// Similarities are scores of the ranking that was served. After
	// reranking the first hit is not necessarily the most similar one.
	var top float64
	if len(hits) > 0 {
		top = hits[0].Similarity
	}
	r.acc.Add(ranking.Outcome{Category: phrase.Category, Rank: rank, TopSimilarity: top})
	r.latency += latency

	outcome := OutcomeMiss
	if rank > 0 {
		outcome = OutcomeHit
	}
	c.monitor.PhraseEvaluated(r.model.Name, outcome, latency)
	r.result.Details = append(r.result.Details, c.detail(ctx, r, phrase, hits, rank, latency))
}

func (c *Coordinator) detail(ctx context.Context, r *run, phrase *core.TestPhrase, hits []search.Hit, rank int, latency time.Duration) Detail {
	d := Detail{
		PhraseId:        phrase.Id,
		Phrase:          phrase.Phrase,
		Category:        phrase.Category,
		RetrievedChunks: make([]Retrieved, len(hits)),
		IsHit:           rank > 0,
		LatencyMs:       durationMs(latency),
	}
	if rank > 0 {
		d.ExpectedRank = &rank
	}
	for i, h := range hits {
		d.RetrievedChunks[i] = Retrieved{
			ChunkRef: ChunkRef{
				ChunkId:     h.ChunkId,
				ChunkIndex:  h.ChunkIndex,
				Content:     h.Content,
				SourceTitle: h.SourceTitle,
			},
			Similarity: h.Similarity,
			IsExpected: h.ChunkId == phrase.ExpectedChunkId,
		}
	}

	chunk, err := c.stores.Chunks.GetChunk(ctx, phrase.ExpectedChunkId)
	if err != nil {
		c.logger.Debug("expected chunk not found", "phrase", phrase.Id, "chunk", phrase.ExpectedChunkId, "err", err)
		return d
	}
	d.ExpectedChunk = &ChunkRef{
		ChunkId:     chunk.Id,
		ChunkIndex:  chunk.ChunkIndex,
		Content:     chunk.Content,
		SourceTitle: c.sourceTitle(ctx, r, chunk.SourceTextId),
	}
	return d
}

func (c *Coordinator) sourceTitle(ctx context.Context, r *run, id core.ID) string {
	if title, ok := r.titles[id]; ok {
		return title
	}
	var title string
	if src, err := c.stores.Sources.GetSourceText(ctx, id); err == nil {
		title = src.Title
	}
	r.titles[id] = title
	return title
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
