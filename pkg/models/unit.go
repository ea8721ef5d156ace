// Package models contains shared data models used across the speedwatch codebase.
package models

import "fmt"

// Unit is the throughput convention a speed sample is expressed in.
type Unit string

const (
	// UnitSecondsPerIter: smaller is faster.
	UnitSecondsPerIter Unit = "s/it"
	// UnitItersPerSecond: larger is faster.
	UnitItersPerSecond Unit = "it/s"
)

// ParseUnit validates a unit string as written in logs and config.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitSecondsPerIter, UnitItersPerSecond:
		return Unit(s), nil
	default:
		return "", fmt.Errorf("unknown speed unit %q: must be one of s/it, it/s", s)
	}
}

// Other returns the reciprocal unit.
func (u Unit) Other() Unit {
	if u == UnitItersPerSecond {
		return UnitSecondsPerIter
	}
	return UnitItersPerSecond
}

func (u Unit) Valid() bool {
	return u == UnitSecondsPerIter || u == UnitItersPerSecond
}
