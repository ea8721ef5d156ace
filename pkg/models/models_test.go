package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("it/s")
	require.NoError(t, err)
	assert.Equal(t, UnitItersPerSecond, u)
	assert.Equal(t, UnitSecondsPerIter, u.Other())

	_, err = ParseUnit("steps/s")
	assert.Error(t, err)
}

func TestHealthTier_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Tier HealthTier `json:"tier"`
	}{TierExtremeSlowdown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"extreme_slowdown"}`, string(data))

	var got HealthTier
	require.NoError(t, json.Unmarshal([]byte(`"worrying"`), &got))
	assert.Equal(t, TierWorrying, got)

	assert.Error(t, json.Unmarshal([]byte(`"fine"`), &got))
}

func TestHealthTier_Ordering(t *testing.T) {
	assert.Less(t, int(TierExcellent), int(TierNormal))
	assert.Less(t, int(TierNormal), int(TierWorrying))
	assert.Less(t, int(TierWorrying), int(TierExtremeSlowdown))
	assert.Equal(t, "Extreme slowdown!", TierExtremeSlowdown.Label())
}

func TestJobStatus_Message(t *testing.T) {
	assert.Equal(t, "Job just started: No speed matches yet", JobStatusJustStarted.Message())
	assert.Equal(t, "Job not found", JobStatusNotFound.Message())
}

func TestCycleReport_Job(t *testing.T) {
	c := &CycleReport{Jobs: []JobReport{{ID: "a"}, {ID: "b", State: JobStateError}}}
	j, ok := c.Job("b")
	require.True(t, ok)
	assert.Equal(t, JobStateError, j.State)

	_, ok = c.Job("z")
	assert.False(t, ok)
}
