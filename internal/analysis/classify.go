package analysis

import (
	"math"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// Classifier maps a speed to a health tier. OptimalUpperLimit is always
// expressed in s/it, whatever the unit being classified.
//
// Bands are closed intervals that meet at single points; a value sitting
// exactly on a boundary gets the less severe tier in both units.
type Classifier struct {
	Unit              models.Unit
	OptimalUpperLimit float64
}

// Classify returns the tier for v, which must be expressed in c.Unit.
func (c Classifier) Classify(v float64) models.HealthTier {
	t := c.OptimalUpperLimit
	if c.Unit == models.UnitItersPerSecond {
		switch {
		case math.IsNaN(v) || v < 1/(10*t):
			return models.TierExtremeSlowdown
		case v < 1/(2*t):
			return models.TierWorrying
		case v < 1/t:
			return models.TierNormal
		default:
			return models.TierExcellent
		}
	}

	switch {
	case math.IsNaN(v) || v > 10*t:
		return models.TierExtremeSlowdown
	case v > 2*t:
		return models.TierWorrying
	case v > t:
		return models.TierNormal
	default:
		return models.TierExcellent
	}
}
