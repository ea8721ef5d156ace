// Package runai talks to the cluster's job scheduler through the runai CLI
// on the login node.
package runai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/speedwatch/pkg/runaicmd"
)

const (
	statusRunning = "Running"
	// Inference jobs never report training speed.
	inferencePrefix = "inf-"
)

// Client is the interface for querying the job scheduler.
type Client interface {
	ListRunningJobs(ctx context.Context, pattern string) ([]string, error)
	DescribeJob(ctx context.Context, job string) (string, error)
	JobLogs(ctx context.Context, job string) (string, error)
}

// CLIClient implements Client by running runai commands through a Runner.
type CLIClient struct {
	runner Runner
	cmd    runaicmd.Builder
}

// NewCLIClient creates a CLIClient. binary may be empty for "runai".
func NewCLIClient(runner Runner, binary string) *CLIClient {
	return &CLIClient{runner: runner, cmd: runaicmd.Builder{Binary: binary}}
}

// ListRunningJobs returns the running, non-inference jobs whose name matches pattern.
func (c *CLIClient) ListRunningJobs(ctx context.Context, pattern string) ([]string, error) {
	out, err := c.runner.Run(ctx, c.cmd.List())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return ParseJobList(out, pattern), nil
}

// DescribeJob returns the raw `runai describe job` text. The CLI exits non-zero
// for unknown jobs while still printing the explanation, so that output is kept.
func (c *CLIClient) DescribeJob(ctx context.Context, job string) (string, error) {
	out, err := c.runner.Run(ctx, c.cmd.DescribeJob(job))
	if err != nil && !(errors.Is(err, ErrCommandFailed) && out != "") {
		return "", fmt.Errorf("describe job %s: %w", job, err)
	}
	return out, nil
}

// JobLogs returns the job's full log text.
func (c *CLIClient) JobLogs(ctx context.Context, job string) (string, error) {
	out, err := c.runner.Run(ctx, c.cmd.Logs(job))
	if err != nil && !(errors.Is(err, ErrCommandFailed) && out != "") {
		return "", fmt.Errorf("logs of job %s: %w", job, err)
	}
	return out, nil
}

// ParseJobList extracts job names from `runai list` output: rows whose status
// is Running, excluding inference jobs. pattern selects names containing it;
// `*` characters in pattern are ignored and an empty pattern selects all.
func ParseJobList(out, pattern string) []string {
	needle := strings.ReplaceAll(pattern, "*", "")

	jobs := []string{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] == "NAME" {
			continue
		}
		if !hasField(fields[1:], statusRunning) {
			continue
		}
		name := fields[0]
		if strings.Contains(name, inferencePrefix) {
			continue
		}
		if needle != "" && !strings.Contains(name, needle) {
			continue
		}
		jobs = append(jobs, name)
	}
	return jobs
}

func hasField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// Compile-time check that CLIClient implements Client.
var _ Client = (*CLIClient)(nil)
