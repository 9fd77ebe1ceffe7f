package ranking

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/poiesic/embedeval/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	retrieved := []core.ID{3, 7, 1, 9, 2}

	assert.Equal(t, 1, Rank(retrieved, 3))
	assert.Equal(t, 2, Rank(retrieved, 7))
	assert.Equal(t, 5, Rank(retrieved, 2))
	assert.Equal(t, 0, Rank(retrieved, 4))
	assert.Equal(t, 0, Rank(nil, 4))
}

func TestSinglePhraseContributions(t *testing.T) {
	tests := []struct {
		name      string
		retrieved []core.ID
		want      core.Metrics
	}{
		{
			name:      "rank 1",
			retrieved: []core.ID{3, 7, 1, 9, 2},
			want:      core.Metrics{AvgSimilarity: 0.9, TopKAccuracy1: 1, TopKAccuracy3: 1, TopKAccuracy5: 1, MRRScore: 1, NDCGScore: 1},
		},
		{
			name:      "rank 2",
			retrieved: []core.ID{7, 3, 1, 9, 2},
			want:      core.Metrics{AvgSimilarity: 0.9, TopKAccuracy1: 0, TopKAccuracy3: 1, TopKAccuracy5: 1, MRRScore: 0.5, NDCGScore: 1 / math.Log2(3)},
		},
		{
			name:      "miss",
			retrieved: []core.ID{7, 1, 9, 2, 8},
			want:      core.Metrics{AvgSimilarity: 0.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute([]Outcome{{Rank: Rank(tt.retrieved, 3), TopSimilarity: 0.9}})
			assert.InDelta(t, tt.want.AvgSimilarity, got.AvgSimilarity, 1e-9)
			assert.InDelta(t, tt.want.TopKAccuracy1, got.TopKAccuracy1, 1e-9)
			assert.InDelta(t, tt.want.TopKAccuracy3, got.TopKAccuracy3, 1e-9)
			assert.InDelta(t, tt.want.TopKAccuracy5, got.TopKAccuracy5, 1e-9)
			assert.InDelta(t, tt.want.MRRScore, got.MRRScore, 1e-9)
			assert.InDelta(t, tt.want.NDCGScore, got.NDCGScore, 1e-9)
		})
	}
	assert.InDelta(t, 0.631, DiscountedGain(2), 1e-3)
}

func TestCompute_Means(t *testing.T) {
	m := Compute([]Outcome{
		{Rank: 1, TopSimilarity: 0.8},
		{Rank: 4, TopSimilarity: 0.6},
		{Rank: 0, TopSimilarity: 0.4},
		{Rank: 2, TopSimilarity: 0.6},
	})

	assert.InDelta(t, 0.6, m.AvgSimilarity, 1e-9)
	assert.InDelta(t, 0.25, m.TopKAccuracy1, 1e-9)
	assert.InDelta(t, 0.5, m.TopKAccuracy3, 1e-9)
	assert.InDelta(t, 0.75, m.TopKAccuracy5, 1e-9)
	assert.InDelta(t, (1+0.25+0.5)/4, m.MRRScore, 1e-9)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, core.Metrics{}, Compute(nil))
}

func TestMetricInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + rng.IntN(30)
		outcomes := make([]Outcome, n)
		allRankOne := true
		for i := range outcomes {
			outcomes[i] = Outcome{Rank: rng.IntN(6), TopSimilarity: rng.Float64()}
			if outcomes[i].Rank > 1 {
				allRankOne = false
			}
		}
		m := Compute(outcomes)

		require.LessOrEqual(t, m.TopKAccuracy1, m.TopKAccuracy3)
		require.LessOrEqual(t, m.TopKAccuracy3, m.TopKAccuracy5)
		require.GreaterOrEqual(t, m.MRRScore, 0.0)
		require.LessOrEqual(t, m.MRRScore, 1.0)
		require.GreaterOrEqual(t, m.MRRScore, m.TopKAccuracy1)
		require.LessOrEqual(t, m.MRRScore, m.NDCGScore+1e-12)
		if allRankOne {
			require.InDelta(t, m.TopKAccuracy1, m.MRRScore, 1e-12)
		}
	}
}

func TestCategories(t *testing.T) {
	var a Accumulator
	a.Add(Outcome{Category: "definition", Rank: 1})
	a.Add(Outcome{Category: "", Rank: 0})
	a.Add(Outcome{Category: "definition", Rank: 2})

	cats := a.Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, CategoryStats{Category: "definition", Phrases: 2, Hits: 2, TopKAccuracy1: 0.5, MRRScore: 0.75}, cats[0])
	assert.Equal(t, CategoryStats{Category: Uncategorized, Phrases: 1}, cats[1])
	assert.Equal(t, 3, a.Count())
}
