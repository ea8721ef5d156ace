package aggregate

import "sync"

// Windows holds one Window per monitored job. Each Observe rebuilds the job's
// window from the samples fetched in that cycle, so a window is a view of the
// last capacity samples of the job's current log, not a history accumulated
// across cycles. Safe for concurrent use.
type Windows struct {
	mu       sync.Mutex
	capacity int
	jobs     map[string]*Window
}

// NewWindows creates a registry whose windows hold capacity samples each.
func NewWindows(capacity int) *Windows {
	return &Windows{capacity: capacity, jobs: make(map[string]*Window)}
}

// Observe feeds the job's chronological sample sequence, as extracted from
// the log text fetched this cycle, and returns the window's latest and mean.
// A source that returns only a bounded tail of the log (Loki) and one that
// returns the whole log (runai logs) give the same result, and a restarted
// log replaces the old samples.
func (ws *Windows) Observe(job string, samples []float64) (latest, mean float64, ok bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, exists := ws.jobs[job]
	if !exists {
		w = NewWindow(ws.capacity)
		ws.jobs[job] = w
	}

	if n := len(samples); n > w.Cap() {
		samples = samples[n-w.Cap():]
	}
	w.Reset()
	w.Push(samples...)

	latest, ok = w.Latest()
	if !ok {
		return 0, 0, false
	}
	mean, _ = w.Mean()
	return latest, mean, true
}

// Values returns a copy of the job's window, oldest first, or nil for an
// unknown job.
func (ws *Windows) Values(job string) []float64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.jobs[job]
	if !ok {
		return nil
	}
	return w.Values()
}

// Retain drops the windows of every job not in jobs.
func (ws *Windows) Retain(jobs []string) {
	keep := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		keep[j] = struct{}{}
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for j := range ws.jobs {
		if _, ok := keep[j]; !ok {
			delete(ws.jobs, j)
		}
	}
}

// Forget drops one job's window.
func (ws *Windows) Forget(job string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.jobs, job)
}
