package ranking

import (
	"math"

	"github.com/poiesic/embedeval/core"
)

// Uncategorized labels phrases without a category in breakdowns.
const Uncategorized = "uncategorized"

// Rank returns the 1-based position of expected in retrieved, or 0 when it
// is absent.
func Rank(retrieved []core.ID, expected core.ID) int {
	for i, id := range retrieved {
		if id == expected {
			return i + 1
		}
	}
	return 0
}

// Outcome is the evaluation of one phrase.
type Outcome struct {
	Category string
	// Rank is the 1-based rank of the expected chunk, 0 for a miss.
	Rank int
	// TopSimilarity is the similarity of the first retrieved chunk, 0 when
	// nothing was retrieved.
	TopSimilarity float64
}

// ReciprocalRank returns 1/r for a hit and 0 for a miss.
func ReciprocalRank(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1 / float64(rank)
}

// DiscountedGain returns 1/log2(r+1) for a hit and 0 for a miss.
func DiscountedGain(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return 1 / math.Log2(float64(rank)+1)
}

// CategoryStats summarizes the phrases of one category.
type CategoryStats struct {
	Category      string  `json:"category"`
	Phrases       int     `json:"phrases"`
	Hits          int     `json:"hits"`
	TopKAccuracy1 float64 `json:"topKAccuracy1"`
	MRRScore      float64 `json:"mrrScore"`
}

type sums struct {
	n          int
	hits       int
	hits1      int
	hits3      int
	hits5      int
	rr         float64
	gain       float64
	similarity float64
}

func (s *sums) add(o Outcome) {
	s.n++
	s.similarity += o.TopSimilarity
	if o.Rank <= 0 {
		return
	}
	s.hits++
	if o.Rank <= 1 {
		s.hits1++
	}
	if o.Rank <= 3 {
		s.hits3++
	}
	if o.Rank <= 5 {
		s.hits5++
	}
	s.rr += ReciprocalRank(o.Rank)
	s.gain += DiscountedGain(o.Rank)
}

func (s *sums) mean(v float64) float64 {
	if s.n == 0 {
		return 0
	}
	return v / float64(s.n)
}

// Accumulator aggregates outcomes. The zero value is ready to use.
type Accumulator struct {
	total      sums
	categories map[string]*sums
	order      []string
}

// Add records one phrase outcome.
func (a *Accumulator) Add(o Outcome) {
	a.total.add(o)

	category := o.Category
	if category == "" {
		category = Uncategorized
	}
	if a.categories == nil {
		a.categories = make(map[string]*sums)
	}
	s, ok := a.categories[category]
	if !ok {
		s = &sums{}
		a.categories[category] = s
		a.order = append(a.order, category)
	}
	s.add(o)
}

// Count returns the number of outcomes added.
func (a *Accumulator) Count() int {
	return a.total.n
}

// Metrics returns the aggregate metrics. All values are zero when nothing
// was added.
func (a *Accumulator) Metrics() core.Metrics {
	s := &a.total
	return core.Metrics{
		AvgSimilarity: s.mean(s.similarity),
		TopKAccuracy1: s.mean(float64(s.hits1)),
		TopKAccuracy3: s.mean(float64(s.hits3)),
		TopKAccuracy5: s.mean(float64(s.hits5)),
		MRRScore:      s.mean(s.rr),
		NDCGScore:     s.mean(s.gain),
	}
}

// Categories returns per-category statistics in order of first appearance.
func (a *Accumulator) Categories() []CategoryStats {
	out := make([]CategoryStats, 0, len(a.order))
	for _, name := range a.order {
		s := a.categories[name]
		out = append(out, CategoryStats{
			Category:      name,
			Phrases:       s.n,
			Hits:          s.hits,
			TopKAccuracy1: s.mean(float64(s.hits1)),
			MRRScore:      s.mean(s.rr),
		})
	}
	return out
}

// Compute aggregates outcomes in one call.
func Compute(outcomes []Outcome) core.Metrics {
	var a Accumulator
	for _, o := range outcomes {
		a.Add(o)
	}
	return a.Metrics()
}
