package models

import (
	"time"

	"github.com/google/uuid"
)

// NodeSamples maps a node name to an unordered collection of speed samples.
type NodeSamples map[string][]float64

// NodeReport is the per-cycle classification of one node.
type NodeReport struct {
	Node    string     `json:"node"`
	Mean    float64    `json:"mean"`
	Samples int        `json:"samples"`
	Tier    HealthTier `json:"tier"`
}

// CycleReport is everything one poll cycle produced.
type CycleReport struct {
	ID             uuid.UUID    `json:"id"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Unit           Unit         `json:"unit"`
	Jobs           []JobReport  `json:"jobs"`
	Nodes          []NodeReport `json:"nodes"`
	Aggregated     bool         `json:"aggregated"`
	SkippedSources []string     `json:"skipped_sources,omitempty"`
}

// Job returns the report for id, if the cycle polled it.
func (c *CycleReport) Job(id string) (JobReport, bool) {
	for _, j := range c.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return JobReport{}, false
}
