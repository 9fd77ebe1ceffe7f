package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/grid"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/storage"
)

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	streams := api.Group("", jobID())
	streams.GET("/embed", s.embed)
	streams.GET("/embed-all", s.embedAll)
	streams.GET("/evaluate", s.evaluate)
	streams.GET("/grid", s.gridSearch)

	api.GET("/compare", s.compare)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/models", s.listModels)
	api.GET("/rerankers", s.listRerankers)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

type embedQuery struct {
	ModelID   uint64 `form:"modelId" binding:"required"`
	Scope     string `form:"scope"`
	BatchSize int    `form:"batchSize"`
}

func (s *Server) embed(c *gin.Context) {
	var q embedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	events, err := s.deps.Embedder.Run(c.Request.Context(), reembed.Request{
		ModelID:   core.ID(q.ModelID),
		Scope:     scopeOrAll(q.Scope),
		BatchSize: q.BatchSize,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	stream(c, s.logger, events)
}

type embedAllQuery struct {
	Scope     string `form:"scope"`
	BatchSize int    `form:"batchSize"`
}

func (s *Server) embedAll(c *gin.Context) {
	var q embedAllQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	events, err := s.deps.Embedder.EmbedEveryModel(c.Request.Context(), scopeOrAll(q.Scope), q.BatchSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	stream(c, s.logger, events)
}

type evalQuery struct {
	ModelID       uint64 `form:"modelId" binding:"required"`
	RerankerID    uint64 `form:"rerankerId"`
	MatryoshkaDim int    `form:"matryoshkaDim"`
	TopK          int    `form:"topK"`
}

func (s *Server) evaluate(c *gin.Context) {
	var q evalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	events, err := s.deps.Evaluator.Run(c.Request.Context(), eval.Request{
		ModelID:       core.ID(q.ModelID),
		RerankerID:    core.ID(q.RerankerID),
		MatryoshkaDim: q.MatryoshkaDim,
		TopK:          q.TopK,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	stream(c, s.logger, events)
}

type gridQuery struct {
	evalQuery
	BatchSize  int    `form:"batchSize"`
	Sizes      string `form:"sizes"`
	Overlaps   string `form:"overlaps"`
	Strategies string `form:"strategies"`
}

func (s *Server) gridSearch(c *gin.Context) {
	if s.grid == nil {
		s.fail(c, ErrGridDisabled)
		return
	}
	var q gridQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	sizes, err := parseInts(q.Sizes)
	if err != nil {
		s.fail(c, err)
		return
	}
	overlaps, err := parseInts(q.Overlaps)
	if err != nil {
		s.fail(c, err)
		return
	}

	events, err := s.grid.Run(c.Request.Context(), grid.Request{
		ModelID:       core.ID(q.ModelID),
		RerankerID:    core.ID(q.RerankerID),
		MatryoshkaDim: q.MatryoshkaDim,
		TopK:          q.TopK,
		BatchSize:     q.BatchSize,
		Sizes:         sizes,
		Overlaps:      overlaps,
		Strategies:    splitList(q.Strategies),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	stream(c, s.logger, events)
}

type compareQuery struct {
	Metric   string `form:"metric"`
	ModelIDs string `form:"modelIds"`
	RunIDs   string `form:"runIds"`
	All      bool   `form:"all"`
}

// compare answers with the latest run per model by default. all=true
// compares every completed run and runIds an explicit set, so runs of one
// model under different chunk configurations share a table.
func (s *Server) compare(c *gin.Context) {
	var q compareQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	metric, err := compare.ParseMetric(q.Metric)
	if err != nil {
		s.fail(c, err)
		return
	}
	modelIDs, err := parseIDs(q.ModelIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	runIDs, err := parseIDs(q.RunIDs)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var rows []compare.Row
	switch {
	case len(runIDs) > 0:
		if len(modelIDs) > 0 || q.All {
			s.fail(c, fmt.Errorf("%w: runIds cannot be combined with modelIds or all", ErrBadRequest))
			return
		}
		rows, err = compare.CompareRuns(ctx, s.deps.Evals, s.deps.Models, metric, runIDs...)
	case q.All:
		rows, err = compare.CompareAll(ctx, s.deps.Evals, s.deps.Models, metric, modelIDs...)
	default:
		rows, err = compare.Compare(ctx, s.deps.Evals, s.deps.Models, metric, modelIDs...)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "rows": rows})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.deps.Evals.ListRuns(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]runView, len(runs))
	for i, r := range runs {
		views[i] = newRunView(r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

func (s *Server) getRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: run id %q", ErrBadRequest, c.Param("id")))
		return
	}
	ctx := c.Request.Context()
	run, err := s.deps.Evals.GetRun(ctx, core.ID(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	results, err := s.deps.Evals.ListResults(ctx, run.Id)
	if err != nil {
		s.fail(c, err)
		return
	}

	views := make([]resultView, len(results))
	for i, r := range results {
		phrase, err := s.deps.Phrases.GetPhrase(ctx, r.PhraseId)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.fail(c, err)
			return
		}
		views[i] = newResultView(r, phrase)
	}
	c.JSON(http.StatusOK, gin.H{"run": newRunView(run), "results": views})
}

func (s *Server) listModels(c *gin.Context) {
	models, err := s.deps.Models.ListEmbeddingModels(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]modelView, len(models))
	for i, m := range models {
		views[i] = newModelView(m)
	}
	c.JSON(http.StatusOK, gin.H{"models": views})
}

func (s *Server) listRerankers(c *gin.Context) {
	rerankers, err := s.deps.Models.ListRerankerModels(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]rerankerView, len(rerankers))
	for i, r := range rerankers {
		views[i] = newRerankerView(r)
	}
	c.JSON(http.StatusOK, gin.H{"rerankers": views})
}

// fail answers with the JSON error matching err.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apiError{Code: code, Message: err.Error()}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnknownModel),
		errors.Is(err, core.ErrUnknownReranker),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, reembed.ErrNoModels):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, core.ErrUnsupportedDimension),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, eval.ErrInvalidTopK),
		errors.Is(err, eval.ErrProviderRequired),
		errors.Is(err, reembed.ErrInvalidBatchSize),
		errors.Is(err, compare.ErrUnknownMetric),
		errors.Is(err, compare.ErrRunNotComplete),
		errors.Is(err, grid.ErrNoConfigs),
		errors.Is(err, ingestion.ErrInvalidChunkConfig):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, ErrGridDisabled):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func scopeOrAll(s string) core.Scope {
	if s == "" {
		return core.ScopeAll
	}
	return core.Scope(s)
}

// splitList splits a comma separated parameter, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	items := splitList(s)
	out := make([]int, len(items))
	for i, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrBadRequest, item)
		}
		out[i] = n
	}
	return out, nil
}

func parseIDs(s string) ([]core.ID, error) {
	items := splitList(s)
	out := make([]core.ID, len(items))
	for i, item := range items {
		n, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an id", ErrBadRequest, item)
		}
		out[i] = core.ID(n)
	}
	return out, nil
}
