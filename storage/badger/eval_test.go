package badger

import (
	"context"
	"testing"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalRepository_Lifecycle(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	run, err := repos.Evals.CreateRun(ctx, &core.EvalRun{ModelId: 1, TopK: 5, TotalChunks: 10})
	require.NoError(t, err)
	assert.NotZero(t, run.Id)
	assert.Equal(t, core.RunRunning, run.Status)

	for i, phraseID := range []core.ID{3, 1, 2} {
		require.NoError(t, repos.Evals.AddResult(ctx, &core.EvalResult{
			RunId:             run.Id,
			PhraseId:          phraseID,
			RetrievedChunkIds: []core.ID{7, 8},
			Similarities:      []float64{0.9, 0.8},
			ExpectedChunkRank: i % 2,
			IsHit:             i%2 == 1,
		}))
	}

	results, err := repos.Evals.ListResults(ctx, run.Id)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []core.ID{3, 1, 2}, []core.ID{results[0].PhraseId, results[1].PhraseId, results[2].PhraseId})

	metrics := core.Metrics{TopKAccuracy1: 0.5, MRRScore: 0.6}
	final, err := repos.Evals.FinalizeRun(ctx, run.Id, storage.RunOutcome{
		Status: core.RunComplete, Metrics: metrics, TotalPhrases: 4, EvaluatedPhrases: 3, ExcludedPhrases: 1, AvgLatencyMs: 4.2,
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunComplete, final.Status)
	assert.Equal(t, metrics, final.Metrics)
	assert.False(t, final.FinalizedAt.IsZero())

	_, err = repos.Evals.FinalizeRun(ctx, run.Id, storage.RunOutcome{Status: core.RunError})
	assert.ErrorIs(t, err, storage.ErrRunFinalized)

	stored, err := repos.Evals.GetRun(ctx, run.Id)
	require.NoError(t, err)
	assert.Equal(t, core.RunComplete, stored.Status)
	assert.Equal(t, 4.2, stored.AvgLatencyMs)
	assert.Equal(t, 4, stored.TotalPhrases)
	assert.Equal(t, 3, stored.EvaluatedPhrases)
	assert.Equal(t, 1, stored.ExcludedPhrases)
}

func TestEvalRepository_ListRunsNewestFirst(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	first, err := repos.Evals.CreateRun(ctx, &core.EvalRun{ModelId: 1})
	require.NoError(t, err)
	second, err := repos.Evals.CreateRun(ctx, &core.EvalRun{ModelId: 2})
	require.NoError(t, err)

	runs, err := repos.Evals.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.Id, runs[0].Id)
	assert.Equal(t, first.Id, runs[1].Id)
}

func TestEvalRepository_ResultsAreScopedToRun(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	a, err := repos.Evals.CreateRun(ctx, &core.EvalRun{ModelId: 1})
	require.NoError(t, err)
	b, err := repos.Evals.CreateRun(ctx, &core.EvalRun{ModelId: 1})
	require.NoError(t, err)

	require.NoError(t, repos.Evals.AddResult(ctx, &core.EvalResult{RunId: a.Id, PhraseId: 1}))
	require.NoError(t, repos.Evals.AddResult(ctx, &core.EvalResult{RunId: b.Id, PhraseId: 2}))

	results, err := repos.Evals.ListResults(ctx, a.Id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(1), results[0].PhraseId)

	_, err = repos.Evals.FinalizeRun(ctx, 999, storage.RunOutcome{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
