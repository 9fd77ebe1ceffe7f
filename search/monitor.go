package search

import "time"

// Monitor provides hooks to observe the search engine.
// Implementations must be safe for concurrent use.
type Monitor interface {
	// SnapshotLoaded is called after a model's vectors were read from storage.
	SnapshotLoaded(model string, vectors int, elapsed time.Duration)
	// SnapshotHit is called when a cached snapshot served a search.
	SnapshotHit(model string)
	// Searched is called after every search with the number of candidates scored.
	Searched(model string, candidates int, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) SnapshotLoaded(_ string, _ int, _ time.Duration) {}
func (noopMonitor) SnapshotHit(_ string)                            {}
func (noopMonitor) Searched(_ string, _ int, _ time.Duration)       {}
