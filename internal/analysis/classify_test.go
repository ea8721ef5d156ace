package analysis

import (
	"testing"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

func TestClassify_SecondsPerIter(t *testing.T) {
	c := Classifier{Unit: models.UnitSecondsPerIter, OptimalUpperLimit: 5}

	tests := []struct {
		value    float64
		expected models.HealthTier
	}{
		{52, models.TierExtremeSlowdown},
		{50.0001, models.TierExtremeSlowdown},
		{50, models.TierWorrying},
		{12, models.TierWorrying},
		{10, models.TierNormal},
		{8, models.TierNormal},
		{5, models.TierExcellent},
		{4, models.TierExcellent},
		{0.1, models.TierExcellent},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.value); got != tt.expected {
			t.Errorf("Classify(%v) = %s, expected %s", tt.value, got, tt.expected)
		}
	}
}

func TestClassify_ItersPerSecond(t *testing.T) {
	c := Classifier{Unit: models.UnitItersPerSecond, OptimalUpperLimit: 5}

	tests := []struct {
		value    float64
		expected models.HealthTier
	}{
		{1, models.TierExcellent},
		{0.2, models.TierExcellent},
		{0.15, models.TierNormal},
		{0.1, models.TierNormal},
		{0.05, models.TierWorrying},
		{0.02, models.TierWorrying},
		{0.019, models.TierExtremeSlowdown},
		{0, models.TierExtremeSlowdown},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.value); got != tt.expected {
			t.Errorf("Classify(%v) = %s, expected %s", tt.value, got, tt.expected)
		}
	}
}

func TestClassify_UnitsAgree(t *testing.T) {
	sit := Classifier{Unit: models.UnitSecondsPerIter, OptimalUpperLimit: 3}
	its := Classifier{Unit: models.UnitItersPerSecond, OptimalUpperLimit: 3}

	for _, v := range []float64{0.5, 2, 3.5, 6.5, 20, 29, 31, 100} {
		if a, b := sit.Classify(v), its.Classify(1/v); a != b {
			t.Errorf("%v s/it => %s but %v it/s => %s", v, a, 1/v, b)
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	for _, unit := range []models.Unit{models.UnitSecondsPerIter, models.UnitItersPerSecond} {
		c := Classifier{Unit: unit, OptimalUpperLimit: 2}
		prev := c.Classify(0.001)
		for v := 0.001; v < 100; v *= 1.07 {
			tier := c.Classify(v)
			if unit == models.UnitSecondsPerIter && tier < prev {
				t.Fatalf("%s: tier dropped from %s to %s at %v", unit, prev, tier, v)
			}
			if unit == models.UnitItersPerSecond && tier > prev {
				t.Fatalf("%s: tier rose from %s to %s at %v", unit, prev, tier, v)
			}
			prev = tier
		}
	}
}
