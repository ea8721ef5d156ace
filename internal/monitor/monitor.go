// Package monitor runs the poll cycle: list jobs, resolve each one from its
// description and logs, update rolling windows, classify jobs and nodes, and
// optionally merge node observations with other users through an exchange.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/speedwatch/internal/aggregate"
	"github.com/kiranshivaraju/speedwatch/internal/analysis"
	"github.com/kiranshivaraju/speedwatch/internal/exchange"
	"github.com/kiranshivaraju/speedwatch/internal/loki"
	"github.com/kiranshivaraju/speedwatch/internal/metrics"
	"github.com/kiranshivaraju/speedwatch/internal/runai"
	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// ErrCycleInFlight is returned when a cycle is requested while one is running.
var ErrCycleInFlight = errors.New("a poll cycle is already in flight")

// LogSource fetches a job's log text. runai.CLIClient returns the whole log,
// loki.HTTPClient its newest lines; both satisfy it.
type LogSource interface {
	JobLogs(ctx context.Context, job string) (string, error)
}

// Config is the process-wide monitor configuration, fixed at startup.
type Config struct {
	User string
	// Jobs is polled as-is when set and Pattern is empty.
	Jobs []string
	// Pattern selects jobs from the running listing. Used when Jobs is empty.
	Pattern string
	// DynamicJobList re-lists jobs every cycle instead of once.
	DynamicJobList    bool
	Unit              models.Unit
	OptimalUpperLimit float64
	NodePrefix        string
	SpeedHistory      int
	PollInterval      time.Duration
	CallTimeout       time.Duration
	Parallelism       int
}

type Monitor struct {
	cfg        Config
	client     runai.Client
	logs       LogSource
	exchange   exchange.Exchange
	resolver   *analysis.Resolver
	classifier analysis.Classifier
	windows    *aggregate.Windows

	// cycle is held for the duration of a cycle.
	cycle sync.Mutex

	mu     sync.RWMutex
	latest *models.CycleReport
	listed []string

	now func() time.Time
}

// New creates a Monitor. logs may be nil to read logs through client.
// ex may be nil to disable cross-user aggregation.
func New(cfg Config, client runai.Client, logs LogSource, ex exchange.Exchange) *Monitor {
	if logs == nil {
		logs = client
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Monitor{
		cfg:        cfg,
		client:     client,
		logs:       logs,
		exchange:   ex,
		resolver:   analysis.NewResolver(cfg.NodePrefix),
		classifier: analysis.Classifier{Unit: cfg.Unit, OptimalUpperLimit: cfg.OptimalUpperLimit},
		windows:    aggregate.NewWindows(cfg.SpeedHistory),
		now:        time.Now,
	}
}

// Run polls immediately and then every PollInterval until ctx is done.
// A tick that finds a cycle still running is skipped.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := m.RunCycle(ctx); err != nil {
			switch {
			case errors.Is(err, ErrCycleInFlight):
				slog.Debug("skipping tick, cycle still running")
			case ctx.Err() != nil:
			default:
				slog.Error("poll cycle failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent completed cycle, or nil before the first.
func (m *Monitor) Latest() *models.CycleReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Unit is the canonical unit every reported speed is expressed in.
func (m *Monitor) Unit() models.Unit {
	return m.cfg.Unit
}

// Ping checks the exchange backend, if any, by reading it.
func (m *Monitor) Ping(ctx context.Context) error {
	if m.exchange == nil {
		return nil
	}
	_, _, err := m.exchange.ReadAll(ctx)
	return err
}

// RunCycle performs one poll cycle and publishes its report. It returns
// ErrCycleInFlight without doing anything if another cycle is running.
func (m *Monitor) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !m.cycle.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer m.cycle.Unlock()
	return m.runCycle(ctx)
}

// Trigger starts a cycle in the background and returns immediately.
// ctx bounds the cycle, so it must outlive the caller's request.
func (m *Monitor) Trigger(ctx context.Context) error {
	if !m.cycle.TryLock() {
		return ErrCycleInFlight
	}
	go func() {
		defer m.cycle.Unlock()
		if _, err := m.runCycle(ctx); err != nil {
			slog.Error("triggered poll cycle failed", "error", err)
		}
	}()
	return nil
}

func (m *Monitor) runCycle(ctx context.Context) (*models.CycleReport, error) {
	report := &models.CycleReport{
		ID:        uuid.New(),
		StartedAt: m.now(),
		Unit:      m.cfg.Unit,
	}

	jobs, err := m.jobList(ctx)
	if err != nil {
		return nil, err
	}

	group := aggregate.NewNodeGroup()
	report.Jobs = m.pollJobs(ctx, jobs, group)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.windows.Retain(jobs)

	nodes := group.Snapshot()
	if m.exchange != nil {
		merged, skipped, err := m.aggregateNodes(ctx, nodes, report.StartedAt)
		if err != nil {
			slog.Warn("cross-user aggregation failed, using local nodes", "error", err)
		} else {
			nodes = merged
			report.Aggregated = true
			report.SkippedSources = skipped
		}
	}
	report.Nodes = m.classifyNodes(nodes)
	report.FinishedAt = m.now()

	m.mu.Lock()
	m.latest = report
	m.mu.Unlock()

	metrics.RecordCycle(report)
	logSummary(report)
	return report, nil
}

// jobList returns the jobs to poll this cycle. A listing failure falls back
// to the previous listing when there is one.
func (m *Monitor) jobList(ctx context.Context) ([]string, error) {
	if len(m.cfg.Jobs) > 0 && m.cfg.Pattern == "" {
		return m.cfg.Jobs, nil
	}

	m.mu.RLock()
	listed := m.listed
	m.mu.RUnlock()
	if listed != nil && !m.cfg.DynamicJobList {
		return listed, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	jobs, err := m.client.ListRunningJobs(callCtx, m.cfg.Pattern)
	if err != nil {
		metrics.RemoteErrorsTotal.WithLabelValues("list").Inc()
		if listed != nil {
			slog.Warn("job listing failed, reusing previous listing", "error", err, "jobs", len(listed))
			return listed, nil
		}
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []string{}
	}

	m.mu.Lock()
	m.listed = jobs
	m.mu.Unlock()
	return jobs, nil
}

func (m *Monitor) pollJobs(ctx context.Context, jobs []string, group *aggregate.NodeGroup) []models.JobReport {
	reports := make([]models.JobReport, len(jobs))

	var g errgroup.Group
	g.SetLimit(m.cfg.Parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			reports[i] = m.pollJob(ctx, job, group)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// pollJob never fails the cycle: every problem becomes the job's error state.
func (m *Monitor) pollJob(ctx context.Context, job string, group *aggregate.NodeGroup) models.JobReport {
	description, err := m.call(ctx, "describe", func(ctx context.Context) (string, error) {
		return m.client.DescribeJob(ctx, job)
	})
	if err != nil {
		return errorReport(job, err)
	}

	if obs, ok := m.resolver.ShortCircuit(description); ok {
		if obs.Status == models.JobStatusNotFound || obs.Status == models.JobStatusFailed {
			m.windows.Forget(job)
		}
		return noDataReport(job, obs)
	}

	logs, err := m.call(ctx, "logs", func(ctx context.Context) (string, error) {
		return m.logs.JobLogs(ctx, job)
	})
	if err != nil {
		return errorReport(job, err)
	}

	obs, err := m.resolver.Resolve(description, logs, m.cfg.Unit)
	if err != nil {
		return errorReport(job, analysis.ResolveError(job, err))
	}
	if obs.Status != models.JobStatusRunning {
		return noDataReport(job, obs)
	}

	latest, mean, ok := m.windows.Observe(job, obs.Samples)
	if !ok {
		return noDataReport(job, models.JobObservation{Status: models.JobStatusJustStarted})
	}
	tier := m.classifier.Classify(latest)
	group.Record(obs.Node, latest)

	return models.JobReport{
		ID:     job,
		State:  models.JobStateHasMetrics,
		Status: models.JobStatusRunning,
		Node:   obs.Node,
		Age:    obs.Age,
		Latest: &latest,
		Mean:   &mean,
		Tier:   &tier,
		Window: m.windows.Values(job),
	}
}

// call bounds one remote call by the configured timeout.
func (m *Monitor) call(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	out, err := fn(callCtx)
	if err != nil {
		metrics.RemoteErrorsTotal.WithLabelValues(op).Inc()
	}
	return out, err
}

// aggregateNodes publishes this cycle's local node group and merges it with
// every other user's fresh snapshot.
func (m *Monitor) aggregateNodes(ctx context.Context, local models.NodeSamples, at time.Time) (models.NodeSamples, []string, error) {
	own := models.Snapshot{
		User:      m.cfg.User,
		Unit:      m.cfg.Unit,
		Nodes:     local,
		WrittenAt: at,
	}

	writeCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.exchange.Write(writeCtx, own)
	cancel()
	if err != nil {
		metrics.RemoteErrorsTotal.WithLabelValues("exchange_write").Inc()
		slog.Warn("publish node snapshot failed", "error", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	snaps, sourceErrs, err := m.exchange.ReadAll(readCtx)
	cancel()
	if err != nil {
		metrics.RemoteErrorsTotal.WithLabelValues("exchange_read").Inc()
		return nil, nil, err
	}

	merge := []models.Snapshot{own}
	for _, s := range snaps {
		if s.User == m.cfg.User {
			continue
		}
		merge = append(merge, s)
	}

	var skipped []string
	for _, se := range sourceErrs {
		slog.Warn("skipping node snapshot", "source", se.Source, "error", se.Err)
		skipped = append(skipped, se.Source)
	}

	return aggregate.Merge(m.cfg.Unit, merge...), skipped, nil
}

func (m *Monitor) classifyNodes(nodes models.NodeSamples) []models.NodeReport {
	out := make([]models.NodeReport, 0, len(nodes))
	for node, samples := range nodes {
		if node == models.NodeJobNotFound {
			continue
		}
		mean, ok := aggregate.Mean(samples)
		if !ok {
			continue
		}
		out = append(out, models.NodeReport{
			Node:    node,
			Mean:    mean,
			Samples: len(samples),
			Tier:    m.classifier.Classify(mean),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

func noDataReport(job string, obs models.JobObservation) models.JobReport {
	return models.JobReport{
		ID:     job,
		State:  models.JobStateNoData,
		Status: obs.Status,
		Reason: obs.Status.Message(),
		Node:   obs.Node,
	}
}

func errorReport(job string, err error) models.JobReport {
	reason := err.Error()
	if runai.IsTransient(err) || loki.IsTransient(err) {
		reason = "unavailable this cycle: " + reason
	}
	return models.JobReport{
		ID:     job,
		State:  models.JobStateError,
		Reason: reason,
	}
}

func logSummary(r *models.CycleReport) {
	counts := map[models.JobStateKind]int{}
	for _, j := range r.Jobs {
		counts[j.State]++
		if j.State == models.JobStateError {
			slog.Warn("job poll failed", "cycle_id", r.ID, "job", j.ID, "reason", j.Reason)
		}
	}
	worst := -1
	for _, n := range r.Nodes {
		if int(n.Tier) > worst {
			worst = int(n.Tier)
		}
	}
	attrs := []any{
		"cycle_id", r.ID,
		"duration_ms", r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
		"jobs", len(r.Jobs),
		"with_metrics", counts[models.JobStateHasMetrics],
		"no_data", counts[models.JobStateNoData],
		"errors", counts[models.JobStateError],
		"nodes", len(r.Nodes),
		"aggregated", r.Aggregated,
	}
	if worst >= 0 {
		attrs = append(attrs, "worst_node_tier", models.HealthTier(worst).String())
	}
	slog.Info("poll cycle complete", attrs...)
}

var (
	_ LogSource = (*runai.CLIClient)(nil)
	_ LogSource = (*loki.HTTPClient)(nil)
)
