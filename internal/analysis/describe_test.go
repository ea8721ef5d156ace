package analysis

import (
	"errors"
	"testing"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

func TestResolve_Running(t *testing.T) {
	r := NewResolver("dgx")

	obs, err := r.Resolve(runningDescription, trainingLogs, models.UnitSecondsPerIter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Status != models.JobStatusRunning {
		t.Errorf("expected running, got %s", obs.Status)
	}
	if obs.Node != "dgx-b07" {
		t.Errorf("expected node dgx-b07, got %q", obs.Node)
	}
	if obs.Age != "3h12m" {
		t.Errorf("expected age 3h12m, got %q", obs.Age)
	}
	if !floatsEqual(obs.Samples, []float64{1.20, 0.80, 2.50}) {
		t.Errorf("unexpected samples: %v", obs.Samples)
	}
}

func TestResolve_DecisionOrder(t *testing.T) {
	r := NewResolver("")

	tests := []struct {
		name        string
		description string
		logs        string
		status      models.JobStatus
		node        string
	}{
		{
			name:        "not found wins regardless of logs",
			description: "Error: could not find any job named train-x\nERROR PENDING",
			logs:        trainingLogs,
			status:      models.JobStatusNotFound,
			node:        models.NodeJobNotFound,
		},
		{
			name:        "error marker before pending",
			description: "Status: ERROR\nPENDING",
			logs:        trainingLogs,
			status:      models.JobStatusFailed,
		},
		{
			name:        "pending",
			description: pendingDescription,
			logs:        trainingLogs,
			status:      models.JobStatusPending,
		},
		{
			name:        "running without samples just started",
			description: runningDescription,
			logs:        "Downloading dataset...\n",
			status:      models.JobStatusJustStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := r.Resolve(tt.description, tt.logs, models.UnitSecondsPerIter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obs.Status != tt.status {
				t.Errorf("expected %s, got %s", tt.status, obs.Status)
			}
			if obs.Node != tt.node {
				t.Errorf("expected node %q, got %q", tt.node, obs.Node)
			}
			if len(obs.Samples) != 0 {
				t.Errorf("expected no samples, got %v", obs.Samples)
			}
		})
	}
}

func TestResolve_MissingNodeIsError(t *testing.T) {
	r := NewResolver("dgx")
	desc := "Name: train-resnet\nStatus: RUNNING\nPods:\nPOD STATUS AGE NODE\ntrain-resnet-0-0 RUNNING 1h gpu-a01/10.0.0.1\n"

	_, err := r.Resolve(desc, trainingLogs, models.UnitSecondsPerIter)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}

	wrapped := ResolveError("train-resnet", err)
	if !errors.Is(wrapped, ErrNodeNotFound) {
		t.Error("wrapped error lost ErrNodeNotFound")
	}
}

func TestResolver_CustomPrefix(t *testing.T) {
	r := NewResolver("gpu-")
	node, err := r.Node("train-0-0 RUNNING 1h gpu-a01/10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != "gpu-a01" {
		t.Errorf("expected gpu-a01, got %q", node)
	}
}

func TestResolver_ZeroValue(t *testing.T) {
	var r Resolver
	node, err := r.Node(runningDescription)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != "dgx-b07" {
		t.Errorf("expected dgx-b07, got %q", node)
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    string
	}{
		{"row after pod header", runningDescription, "3h12m"},
		{"no pod header", "Name: x\nStatus: RUNNING\n", ""},
		{"header on last line", "Pods:\nPOD STATUS AGE NODE", ""},
		{"short row", "POD STATUS AGE NODE\nx\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Age(tt.description); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
