package aggregate

import (
	"sync"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// NodeGroup collects, for one poll cycle, the latest sample of every job
// running on each node. Build a new one per cycle. Safe for concurrent use.
type NodeGroup struct {
	mu    sync.Mutex
	nodes models.NodeSamples
}

func NewNodeGroup() *NodeGroup {
	return &NodeGroup{nodes: make(models.NodeSamples)}
}

// Record appends sample to node's group. The not-found pseudo-node and empty
// names are ignored.
func (g *NodeGroup) Record(node string, sample float64) {
	if node == "" || node == models.NodeJobNotFound {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[node] = append(g.nodes[node], sample)
}

// Snapshot returns a deep copy of the group.
func (g *NodeGroup) Snapshot() models.NodeSamples {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(models.NodeSamples, len(g.nodes))
	for node, samples := range g.nodes {
		out[node] = append([]float64(nil), samples...)
	}
	return out
}
