// Package aggregate keeps the rolling per-job speed windows, the per-cycle
// node groups and merges node observations published by other users.
package aggregate

// Window is a fixed-capacity FIFO of the most recent speed samples of one job.
// It is not safe for concurrent use; Windows serializes access.
type Window struct {
	buf  []float64
	next int
	size int
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends samples in order, evicting the oldest beyond capacity.
func (w *Window) Push(samples ...float64) {
	for _, v := range samples {
		w.buf[w.next] = v
		w.next = (w.next + 1) % len(w.buf)
		if w.size < len(w.buf) {
			w.size++
		}
	}
}

// Latest returns the most recently pushed sample. ok is false on an empty window.
func (w *Window) Latest() (v float64, ok bool) {
	if w.size == 0 {
		return 0, false
	}
	return w.buf[(w.next-1+len(w.buf))%len(w.buf)], true
}

// Mean returns the arithmetic mean of the retained samples. ok is false on an empty window.
func (w *Window) Mean() (float64, bool) {
	if w.size == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range w.Values() {
		sum += v
	}
	return sum / float64(w.size), true
}

// Values returns the retained samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.size)
	start := (w.next - w.size + len(w.buf)) % len(w.buf)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

func (w *Window) Len() int { return w.size }

func (w *Window) Cap() int { return len(w.buf) }

// Reset empties the window, keeping its capacity.
func (w *Window) Reset() {
	w.next = 0
	w.size = 0
}
