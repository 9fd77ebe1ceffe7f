package compare

import "errors"

var (
	// ErrUnknownMetric indicates a quality metric other than top1, mrr or ndcg.
	ErrUnknownMetric = errors.New("unknown quality metric")

	// ErrNoRuns indicates there is nothing to compare or recommend.
	ErrNoRuns = errors.New("no finished evaluation runs")

	// ErrRunNotComplete indicates a run selected for comparison that is still
	// running or ended in error.
	ErrRunNotComplete = errors.New("evaluation run is not complete")
)
