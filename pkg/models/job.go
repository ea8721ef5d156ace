package models

// NodeJobNotFound is the pseudo-node reported for jobs the scheduler no longer knows.
// It is never recorded into node groups or classified.
const NodeJobNotFound = "Job not found"

// JobStatus is the lifecycle state derived from a job's description and logs.
type JobStatus string

const (
	JobStatusRunning     JobStatus = "running"
	JobStatusNotFound    JobStatus = "not_found"
	JobStatusFailed      JobStatus = "failed"
	JobStatusPending     JobStatus = "pending"
	JobStatusJustStarted JobStatus = "just_started"
)

// Message is the status line shown for jobs that carry no speed samples.
func (s JobStatus) Message() string {
	switch s {
	case JobStatusNotFound:
		return "Job not found"
	case JobStatusFailed:
		return "Job failed"
	case JobStatusPending:
		return "Job pending"
	case JobStatusJustStarted:
		return "Job just started: No speed matches yet"
	default:
		return string(s)
	}
}

// JobObservation is what one poll learns about one job. Samples are chronological
// and already normalized to the canonical unit; they are only set when Status is running.
type JobObservation struct {
	Status  JobStatus
	Node    string
	Samples []float64
	Age     string
}

// JobStateKind drives how a presentation layer renders a job.
type JobStateKind string

const (
	JobStateNoData     JobStateKind = "no_data"
	JobStateError      JobStateKind = "error"
	JobStateHasMetrics JobStateKind = "has_metrics"
)

// JobReport is the per-cycle view of one job.
// Latest, Mean, Tier and Window are only set when State is has_metrics.
// Window is the samples Mean was taken over, oldest first.
type JobReport struct {
	ID     string       `json:"id"`
	State  JobStateKind `json:"state"`
	Status JobStatus    `json:"status,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Node   string       `json:"node,omitempty"`
	Age    string       `json:"age,omitempty"`
	Latest *float64     `json:"latest,omitempty"`
	Mean   *float64     `json:"mean,omitempty"`
	Tier   *HealthTier  `json:"tier,omitempty"`
	Window []float64    `json:"window,omitempty"`
}
