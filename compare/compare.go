package compare

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// Metric names the quality axis of a comparison.
type Metric string

const (
	MetricTop1 Metric = "top1"
	MetricMRR  Metric = "mrr"
	MetricNDCG Metric = "ndcg"
)

// ParseMetric validates a metric name. The empty string selects top1.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "":
		return MetricTop1, nil
	case MetricTop1, MetricMRR, MetricNDCG:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// Quality returns the metric value of a run.
func Quality(run *core.EvalRun, metric Metric) float64 {
	switch metric {
	case MetricMRR:
		return run.Metrics.MRRScore
	case MetricNDCG:
		return run.Metrics.NDCGScore
	default:
		return run.Metrics.TopKAccuracy1
	}
}

// Row is one line of a comparison table.
type Row struct {
	RunID            core.ID      `json:"runId"`
	ModelID          core.ID      `json:"modelId"`
	Model            string       `json:"model"`
	Provider         string       `json:"provider"`
	Dimensions       int          `json:"dimensions"`
	MatryoshkaDim    int          `json:"matryoshkaDim,omitempty"`
	RerankerID       core.ID      `json:"rerankerId,omitempty"`
	ChunkSize        int          `json:"chunkSize"`
	ChunkOverlap     int          `json:"chunkOverlap"`
	ChunkStrategy    string       `json:"chunkStrategy"`
	TotalPhrases     int          `json:"totalPhrases"`
	EvaluatedPhrases int          `json:"evaluatedPhrases"`
	Metrics          core.Metrics `json:"metrics"`
	AvgLatencyMs     float64      `json:"avgLatencyMs"`
	Quality          float64      `json:"quality"`
	Pareto           bool         `json:"pareto"`
}

// Table lays out runs as comparison rows and flags the Pareto-optimal ones
// by latency and the chosen metric. Rows keep the order of runs. Runs whose
// model is missing from models keep an empty model name.
func Table(runs []*core.EvalRun, models map[core.ID]*core.EmbeddingModel, metric Metric) []Row {
	points := make([]Point, len(runs))
	rows := make([]Row, len(runs))
	for i, run := range runs {
		q := Quality(run, metric)
		points[i] = Point{LatencyMs: run.AvgLatencyMs, Quality: q}
		rows[i] = Row{
			RunID:            run.Id,
			ModelID:          run.ModelId,
			MatryoshkaDim:    run.MatryoshkaDim,
			RerankerID:       run.RerankerId,
			ChunkSize:        run.ChunkSize,
			ChunkOverlap:     run.ChunkOverlap,
			ChunkStrategy:    run.ChunkStrategy,
			TotalPhrases:     run.TotalPhrases,
			EvaluatedPhrases: run.EvaluatedPhrases,
			Metrics:          run.Metrics,
			AvgLatencyMs:     run.AvgLatencyMs,
			Quality:          q,
		}
		if m, ok := models[run.ModelId]; ok {
			rows[i].Model = m.Name
			rows[i].Provider = m.Provider
			rows[i].Dimensions = m.Dimensions
			if run.MatryoshkaDim > 0 {
				rows[i].Dimensions = run.MatryoshkaDim
			}
		}
	}

	for i, onFront := range ParetoFront(points) {
		rows[i].Pareto = onFront
	}
	return rows
}

// LatestRunPerModel returns the newest completed run of each requested
// model, in the order the models were given. With no model IDs every model
// that has a completed run is included, in model ID order. Models without a
// completed run are left out.
func LatestRunPerModel(ctx context.Context, evals storage.EvalRepository, modelIDs ...core.ID) ([]*core.EvalRun, error) {
	runs, err := evals.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[core.ID]*core.EvalRun)
	for _, run := range runs {
		if run.Status != core.RunComplete {
			continue
		}
		// ListRuns is newest first.
		if _, seen := latest[run.ModelId]; !seen {
			latest[run.ModelId] = run
		}
	}

	if len(modelIDs) == 0 {
		for id := range latest {
			modelIDs = append(modelIDs, id)
		}
		slices.Sort(modelIDs)
	}

	out := make([]*core.EvalRun, 0, len(modelIDs))
	for _, id := range modelIDs {
		if run, ok := latest[id]; ok {
			out = append(out, run)
		}
	}
	return out, nil
}

// CompletedRuns returns every completed run of the given models, oldest
// first. With no model IDs the runs of all models are returned.
func CompletedRuns(ctx context.Context, evals storage.EvalRepository, modelIDs ...core.ID) ([]*core.EvalRun, error) {
	runs, err := evals.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.EvalRun, 0, len(runs))
	for _, run := range runs {
		if run.Status != core.RunComplete {
			continue
		}
		if len(modelIDs) > 0 && !slices.Contains(modelIDs, run.ModelId) {
			continue
		}
		out = append(out, run)
	}
	slices.SortFunc(out, func(a, b *core.EvalRun) int { return cmp.Compare(a.Id, b.Id) })
	return out, nil
}

// SelectRuns loads the given runs in the given order. Every run must exist
// and be complete.
func SelectRuns(ctx context.Context, evals storage.EvalRepository, runIDs ...core.ID) ([]*core.EvalRun, error) {
	out := make([]*core.EvalRun, 0, len(runIDs))
	for _, id := range runIDs {
		run, err := evals.GetRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", id, err)
		}
		if run.Status != core.RunComplete {
			return nil, fmt.Errorf("%w: run %d is %s", ErrRunNotComplete, id, run.Status)
		}
		out = append(out, run)
	}
	return out, nil
}

// Compare loads the latest run of each model and returns the comparison
// table.
func Compare(ctx context.Context, evals storage.EvalRepository, catalog storage.ModelRepository, metric Metric, modelIDs ...core.ID) ([]Row, error) {
	runs, err := LatestRunPerModel(ctx, evals, modelIDs...)
	if err != nil {
		return nil, err
	}
	return table(ctx, catalog, runs, metric)
}

// CompareAll returns the comparison table of every completed run of the
// given models, so runs of one model under different chunk configurations,
// truncations or rerankers share one Pareto front.
func CompareAll(ctx context.Context, evals storage.EvalRepository, catalog storage.ModelRepository, metric Metric, modelIDs ...core.ID) ([]Row, error) {
	runs, err := CompletedRuns(ctx, evals, modelIDs...)
	if err != nil {
		return nil, err
	}
	return table(ctx, catalog, runs, metric)
}

// CompareRuns returns the comparison table of an explicit set of runs.
func CompareRuns(ctx context.Context, evals storage.EvalRepository, catalog storage.ModelRepository, metric Metric, runIDs ...core.ID) ([]Row, error) {
	runs, err := SelectRuns(ctx, evals, runIDs...)
	if err != nil {
		return nil, err
	}
	return table(ctx, catalog, runs, metric)
}

func table(ctx context.Context, catalog storage.ModelRepository, runs []*core.EvalRun, metric Metric) ([]Row, error) {
	models := make(map[core.ID]*core.EmbeddingModel, len(runs))
	for _, run := range runs {
		if _, ok := models[run.ModelId]; ok {
			continue
		}
		m, err := catalog.GetEmbeddingModel(ctx, run.ModelId)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		models[m.Id] = m
	}
	return Table(runs, models, metric), nil
}

// Recommend picks the best of a set of runs: highest top-1 accuracy, then
// highest MRR, then smallest chunk size. Earlier runs win full ties.
func Recommend(runs []*core.EvalRun) (*core.EvalRun, error) {
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	best := slices.MinFunc(runs, func(a, b *core.EvalRun) int {
		if c := cmp.Compare(b.Metrics.TopKAccuracy1, a.Metrics.TopKAccuracy1); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Metrics.MRRScore, a.Metrics.MRRScore); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkSize, b.ChunkSize)
	})
	return best, nil
}
