package eval

import (
	"time"

	"github.com/poiesic/embedeval/core"
)

// Phrase outcomes reported to a Monitor.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeExcluded = "excluded"
)

// Monitor receives evaluation activity.
type Monitor interface {
	// PhraseEvaluated is called once per ground-truthed phrase. latency is
	// zero for excluded phrases.
	PhraseEvaluated(model, outcome string, latency time.Duration)

	// RunFinished is called after a run has been finalized.
	RunFinished(model string, status core.RunStatus)
}

type noopMonitor struct{}

func (noopMonitor) PhraseEvaluated(string, string, time.Duration) {}
func (noopMonitor) RunFinished(string, core.RunStatus)            {}
