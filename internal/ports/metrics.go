package ports

// Metrics records pipeline counters. Implementations must be safe for concurrent use.
type Metrics interface {
	EnqueueFailed()
	EvaluationCompleted(status string)
	EvaluationRetried(stage string)
	JobDeadLettered(reason string)
	CacheLookup(outcome string)
}

type NoopMetrics struct{}

func (NoopMetrics) EnqueueFailed()             {}
func (NoopMetrics) EvaluationCompleted(string) {}
func (NoopMetrics) EvaluationRetried(string)   {}
func (NoopMetrics) JobDeadLettered(string)     {}
func (NoopMetrics) CacheLookup(string)         {}
