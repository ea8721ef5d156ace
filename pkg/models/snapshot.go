package models

import "time"

// Snapshot is one user's node observations for a cycle, published for
// cross-user aggregation. Unit is the convention the samples were written in.
type Snapshot struct {
	User      string      `json:"user"`
	Unit      Unit        `json:"logging_mode"`
	Nodes     NodeSamples `json:"nodes"`
	WrittenAt time.Time   `json:"written_at"`
}
