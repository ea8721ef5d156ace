package models

import (
	"encoding/json"
	"fmt"
)

// HealthTier is the severity classification shared by jobs and nodes.
// Tiers are totally ordered: a larger value is more severe.
type HealthTier int

const (
	TierExcellent HealthTier = iota
	TierNormal
	TierWorrying
	TierExtremeSlowdown
)

var tierNames = map[HealthTier]string{
	TierExcellent:       "excellent",
	TierNormal:          "normal",
	TierWorrying:        "worrying",
	TierExtremeSlowdown: "extreme_slowdown",
}

func (t HealthTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Label is the human-facing status text the monitor has always shown.
func (t HealthTier) Label() string {
	switch t {
	case TierExcellent:
		return "Excellent (for now)"
	case TierNormal:
		return "Normal"
	case TierWorrying:
		return "Worrying"
	case TierExtremeSlowdown:
		return "Extreme slowdown!"
	default:
		return t.String()
	}
}

func (t HealthTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *HealthTier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	tier, err := ParseHealthTier(s)
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseHealthTier is the inverse of String.
func ParseHealthTier(s string) (HealthTier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown health tier %q", s)
}
