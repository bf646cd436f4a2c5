// Package predictor runs a sliding-window classifier over a stream of
// sensor readings. The same loop serves both recognition streams: the
// slow locomotion window and the fast action window differ only in
// configuration and model artifact.
package predictor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/features"
	"github.com/teslashibe/go-wristpad/pkg/model"
	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// errLogEvery limits how often a failing model is reported.
const errLogEvery = 5 * time.Second

// Prediction is a single classifier verdict.
type Prediction struct {
	Stream     string    `json:"stream"`
	Gesture    string    `json:"gesture"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config parameterizes one predictor instance.
type Config struct {
	// Name identifies the stream in logs and downstream events,
	// e.g. "locomotion" or "action".
	Name string
	// WindowSize is the ring capacity in samples.
	WindowSize int
	// FillRatio is the fraction of the window that must be populated
	// before inference starts.
	FillRatio float64
	// Interval is the cadence between inference cycles.
	Interval time.Duration
	// QueueSize bounds the outbound prediction channel.
	QueueSize int
}

// Status is a point-in-time snapshot of predictor counters.
type Status struct {
	Stream     string `json:"stream"`
	WindowFill int    `json:"window_fill"`
	WindowSize int    `json:"window_size"`
	Cycles     uint64 `json:"cycles"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
}

// Predictor owns a window, a classifier and the loop that connects them.
type Predictor struct {
	cfg    Config
	clf    model.Classifier
	names  []string
	window *Window
	in     <-chan sensor.Reading
	out    chan Prediction
	logger *slog.Logger

	fill    atomic.Int64
	cycles  atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// New builds a predictor reading from in. The classifier's feature
// schema is cached once so every cycle reindexes against the same
// ordering the model was trained with.
func New(cfg Config, clf model.Classifier, in <-chan sensor.Reading) *Predictor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Predictor{
		cfg:    cfg,
		clf:    clf,
		names:  clf.FeatureNames(),
		window: NewWindow(cfg.WindowSize),
		in:     in,
		out:    make(chan Prediction, cfg.QueueSize),
		logger: log.Component("predictor").With("stream", cfg.Name),
	}
}

// Predictions returns the outbound verdict channel. When the consumer
// falls behind, the newest verdict is dropped rather than blocking the
// inference loop.
func (p *Predictor) Predictions() <-chan Prediction {
	return p.out
}

// Run consumes readings and emits predictions until ctx is cancelled.
func (p *Predictor) Run(ctx context.Context) {
	p.logger.Info("predictor started",
		"window_size", p.cfg.WindowSize,
		"fill_ratio", p.cfg.FillRatio,
		"interval", p.cfg.Interval,
		"classes", p.clf.Classes())

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var lastErrLog time.Time
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("predictor stopped")
			return
		case r := <-p.in:
			p.window.Push(r)
			p.fill.Store(int64(p.window.Len()))
		case <-ticker.C:
			p.cycle(&lastErrLog)
		}
	}
}

// cycle runs one inference pass if the window is sufficiently full.
func (p *Predictor) cycle(lastErrLog *time.Time) {
	need := int(float64(p.window.Cap()) * p.cfg.FillRatio)
	if p.window.Len() < need {
		return
	}

	vec := features.Reindex(features.Extract(p.window.Snapshot()), p.names)
	gesture, confidence, err := p.clf.Predict(vec)
	if err != nil {
		p.failed.Add(1)
		if time.Since(*lastErrLog) >= errLogEvery {
			*lastErrLog = time.Now()
			p.logger.Warn("inference failed, skipping cycle", "error", err, "failed", p.failed.Load())
		}
		return
	}
	p.cycles.Add(1)

	pred := Prediction{
		Stream:     p.cfg.Name,
		Gesture:    gesture,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
	select {
	case p.out <- pred:
	default:
		p.dropped.Add(1)
	}
}

// Status reports the predictor's counters for the dashboard.
func (p *Predictor) Status() Status {
	return Status{
		Stream:     p.cfg.Name,
		WindowFill: int(p.fill.Load()),
		WindowSize: p.cfg.WindowSize,
		Cycles:     p.cycles.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}
