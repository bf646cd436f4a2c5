// Package consensus gates noisy per-window predictions behind a
// run-of-K agreement rule. Single predictions flicker at gesture
// boundaries; requiring K identical accepted verdicts in a row trades
// a little latency for a lot of stability.
package consensus

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/predictor"
)

// Mode selects what happens once agreement is reached.
type Mode int

const (
	// OneShot fires discrete gestures (jump, punch, turn). Confirmation
	// clears the history so the same action needs a fresh run of K
	// agreeing predictions before it can fire again.
	OneShot Mode = iota
	// Continuous tracks sustained states (walk, idle). The history is
	// kept and an event is emitted only when the confirmed label
	// differs from the previously confirmed one.
	Continuous
)

func (m Mode) String() string {
	if m == Continuous {
		return "continuous"
	}
	return "one-shot"
}

// Event is a confirmed gesture ready for arbitration.
type Event struct {
	Stream     string    `json:"stream"`
	Gesture    string    `json:"gesture"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Status is a point-in-time snapshot of filter counters.
type Status struct {
	Stream    string `json:"stream"`
	Mode      string `json:"mode"`
	K         int    `json:"k"`
	Accepted  uint64 `json:"accepted"`
	Rejected  uint64 `json:"rejected"`
	Confirmed uint64 `json:"confirmed"`
}

// Filter applies confidence gating and K-run agreement to one
// prediction stream. It is a plain state machine: Observe must be
// called from a single goroutine.
type Filter struct {
	stream    string
	mode      Mode
	k         int
	threshold float64
	history   []string
	lastState string
	logger    *slog.Logger

	accepted  atomic.Uint64
	rejected  atomic.Uint64
	confirmed atomic.Uint64
}

// New builds a filter for one stream. k is clamped to at least 1.
func New(stream string, mode Mode, k int, threshold float64) *Filter {
	if k < 1 {
		k = 1
	}
	return &Filter{
		stream:    stream,
		mode:      mode,
		k:         k,
		threshold: threshold,
		history:   make([]string, 0, k),
		logger:    log.Component("consensus").With("stream", stream),
	}
}

// Observe feeds one prediction into the filter. It returns a confirmed
// event and true when the prediction completes a run of K agreeing
// accepted verdicts (and, in continuous mode, the state changed).
func (f *Filter) Observe(p predictor.Prediction) (Event, bool) {
	if p.Confidence < f.threshold {
		f.rejected.Add(1)
		return Event{}, false
	}
	f.accepted.Add(1)

	if len(f.history) == f.k {
		copy(f.history, f.history[1:])
		f.history[f.k-1] = p.Gesture
	} else {
		f.history = append(f.history, p.Gesture)
	}
	if len(f.history) < f.k || !allEqual(f.history) {
		return Event{}, false
	}

	gesture := f.history[f.k-1]
	if f.mode == Continuous {
		if gesture == f.lastState {
			return Event{}, false
		}
		f.lastState = gesture
	} else {
		f.history = f.history[:0]
	}

	f.confirmed.Add(1)
	f.logger.Debug("gesture confirmed", "gesture", gesture, "confidence", p.Confidence)
	return Event{
		Stream:     f.stream,
		Gesture:    gesture,
		Confidence: p.Confidence,
		Timestamp:  p.Timestamp,
	}, true
}

// Status reports the filter's counters for the dashboard.
func (f *Filter) Status() Status {
	return Status{
		Stream:    f.stream,
		Mode:      f.mode.String(),
		K:         f.k,
		Accepted:  f.accepted.Load(),
		Rejected:  f.rejected.Load(),
		Confirmed: f.confirmed.Load(),
	}
}

func allEqual(history []string) bool {
	for _, h := range history[1:] {
		if h != history[0] {
			return false
		}
	}
	return true
}
