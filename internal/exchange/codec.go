package exchange

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// Encode serializes a snapshot after validating it.
func Encode(snap models.Snapshot) ([]byte, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and validates a snapshot. Every failure wraps ErrMalformed.
func Decode(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Validate checks the unit and that every sample is a finite number.
func Validate(snap models.Snapshot) error {
	if !snap.Unit.Valid() {
		return fmt.Errorf("%w: unknown logging_mode %q", ErrMalformed, snap.Unit)
	}
	for node, samples := range snap.Nodes {
		if node == "" {
			return fmt.Errorf("%w: empty node name", ErrMalformed)
		}
		for _, v := range samples {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: node %s has invalid sample %v", ErrMalformed, node, v)
			}
		}
	}
	return nil
}
