package grid

import (
	"errors"

	"github.com/poiesic/embedeval/ingestion"
)

// ErrNoConfigs indicates that no combination has an overlap smaller than its
// chunk size.
var ErrNoConfigs = errors.New("grid: no valid configuration; overlap must be smaller than chunk size")

// Default axes of a grid search.
var (
	DefaultSizes      = []int{100, 200, 300, 500}
	DefaultOverlaps   = []int{0, 30, 60}
	DefaultStrategies = []string{ingestion.StrategySentence}
)

// Configs returns the cartesian product of the axes, sizes outermost and
// strategies innermost, skipping non-positive sizes, negative overlaps and
// combinations whose overlap is not smaller than the size. Unknown
// strategies are rejected.
func Configs(sizes, overlaps []int, strategies []string) ([]ingestion.ChunkConfig, error) {
	var out []ingestion.ChunkConfig
	for _, size := range sizes {
		for _, overlap := range overlaps {
			if size <= 0 || overlap < 0 || overlap >= size {
				continue
			}
			for _, strategy := range strategies {
				c := ingestion.ChunkConfig{Size: size, Overlap: overlap, Strategy: strategy}
				if err := c.Validate(); err != nil {
					return nil, err
				}
				out = append(out, c)
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoConfigs
	}
	return out, nil
}
