package reembed

import "time"

// Monitor observes embedding jobs. Implementations must be safe for
// concurrent use since independent jobs may run at once.
type Monitor interface {
	BatchEmbedded(model, phase string, texts int, elapsed time.Duration)
	BatchFailed(model, phase string)
	JobFinished(summary *Summary)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) BatchEmbedded(_, _ string, _ int, _ time.Duration) {}
func (noopMonitor) BatchFailed(_, _ string)                           {}
func (noopMonitor) JobFinished(_ *Summary)                            {}
