package predictor

import "github.com/teslashibe/go-wristpad/pkg/sensor"

// Window is a fixed-capacity ring of the newest readings in arrival
// order. It is owned by a single predictor loop and is not safe for
// concurrent use.
type Window struct {
	buf   []sensor.Reading
	start int
	count int
}

// NewWindow creates a ring holding at most capacity readings.
func NewWindow(capacity int) *Window {
	return &Window{buf: make([]sensor.Reading, capacity)}
}

// Push appends a reading, evicting the oldest once full.
func (w *Window) Push(r sensor.Reading) {
	if w.count < len(w.buf) {
		w.buf[(w.start+w.count)%len(w.buf)] = r
		w.count++
		return
	}
	w.buf[w.start] = r
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns the number of buffered readings.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the fixed capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Snapshot copies the buffered readings oldest-first. Feature extraction
// works on the copy so the ring can keep filling.
func (w *Window) Snapshot() []sensor.Reading {
	out := make([]sensor.Reading, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
