package aggregate

import (
	"github.com/kiranshivaraju/speedwatch/internal/analysis"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// Merge normalizes every snapshot to canonical and concatenates samples per
// node. Repeated observations from different users are all kept. Zero samples
// that would need reciprocating are dropped, as are snapshots with an unknown unit.
func Merge(canonical models.Unit, snaps ...models.Snapshot) models.NodeSamples {
	out := make(models.NodeSamples)
	for _, snap := range snaps {
		if !snap.Unit.Valid() {
			continue
		}
		for node, samples := range snap.Nodes {
			if node == "" || node == models.NodeJobNotFound {
				continue
			}
			for _, v := range samples {
				converted, ok := analysis.Convert(v, snap.Unit, canonical)
				if !ok {
					continue
				}
				out[node] = append(out[node], converted)
			}
		}
	}
	return out
}

// Mean returns the arithmetic mean of samples. ok is false when empty.
func Mean(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples)), true
}
