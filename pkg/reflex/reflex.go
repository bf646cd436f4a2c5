// Package reflex is the low-latency threshold path. It fires jump and
// attack straight off world-frame acceleration, packets ahead of the
// windowed classifier path, and competes with it through the actor's
// shared cooldown table rather than touching keys itself. Turn and walk
// need temporal context and are never detected here.
package reflex

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/actor"
	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// Defaults applied by New for zero Config fields. Thresholds are in
// m/s² of world-frame acceleration.
const (
	DefaultJumpThreshold   = 15.0
	DefaultAttackThreshold = 12.0
	DefaultStabilityBound  = 5.0
	DefaultRefractory      = 300 * time.Millisecond
)

// Arbiter is the actor-side entry point for reflex detections.
type Arbiter interface {
	Submit(cmd actor.Command) bool
}

// Config parameterizes the detector.
type Config struct {
	// JumpThreshold is the world-Z acceleration above which a jump
	// fires.
	JumpThreshold float64
	// AttackThreshold is the horizontal-plane magnitude above which an
	// attack fires.
	AttackThreshold float64
	// StabilityBound caps |world-Z| during an attack so a jump's
	// vertical spike is not mistaken for a punch.
	StabilityBound float64
	// Refractory is the minimum gap between submissions of the same
	// gesture. The actor's cooldown is authoritative; this only keeps
	// a sustained spike from flooding the command queue at packet rate.
	Refractory time.Duration
}

// Status is a point-in-time snapshot of detector counters.
type Status struct {
	Jumps   uint64 `json:"jumps"`
	Attacks uint64 `json:"attacks"`
	Skipped uint64 `json:"skipped"`
}

// Detector watches the raw stream and submits threshold detections.
type Detector struct {
	cfg     Config
	arbiter Arbiter
	in      <-chan sensor.Reading
	logger  *slog.Logger

	orientation sensor.Quat
	lastSent    map[string]time.Time

	jumps   atomic.Uint64
	attacks atomic.Uint64
	skipped atomic.Uint64
}

// New builds a detector reading from in. Until the first orientation
// packet arrives, readings are assumed already world-aligned.
func New(cfg Config, arbiter Arbiter, in <-chan sensor.Reading) *Detector {
	if cfg.JumpThreshold <= 0 {
		cfg.JumpThreshold = DefaultJumpThreshold
	}
	if cfg.AttackThreshold <= 0 {
		cfg.AttackThreshold = DefaultAttackThreshold
	}
	if cfg.StabilityBound <= 0 {
		cfg.StabilityBound = DefaultStabilityBound
	}
	if cfg.Refractory <= 0 {
		cfg.Refractory = DefaultRefractory
	}
	return &Detector{
		cfg:         cfg,
		arbiter:     arbiter,
		in:          in,
		logger:      log.Component("reflex"),
		orientation: sensor.Identity(),
		lastSent:    make(map[string]time.Time),
	}
}

// Run consumes readings until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	d.logger.Info("reflex layer armed",
		"jump_threshold", d.cfg.JumpThreshold,
		"attack_threshold", d.cfg.AttackThreshold,
		"stability_bound", d.cfg.StabilityBound)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("reflex layer stopped")
			return
		case r := <-d.in:
			d.process(r)
		}
	}
}

func (d *Detector) process(r sensor.Reading) {
	switch r.Kind {
	case sensor.Orientation:
		if !r.Quat.IsFinite() {
			d.skipped.Add(1)
			return
		}
		d.orientation = r.Quat
	case sensor.Acceleration:
		world, err := sensor.Rotate(r.Vec, d.orientation)
		if err != nil {
			d.skipped.Add(1)
			return
		}
		// Jump wins when both thresholds are crossed: a hard jump
		// produces incidental horizontal motion, not the other way
		// around.
		if world.Z > d.cfg.JumpThreshold {
			d.fire("jump", world.Z/d.cfg.JumpThreshold, r.Timestamp, &d.jumps)
			return
		}
		horizontal := math.Hypot(world.X, world.Y)
		if horizontal > d.cfg.AttackThreshold && math.Abs(world.Z) < d.cfg.StabilityBound {
			d.fire("attack", horizontal/d.cfg.AttackThreshold, r.Timestamp, &d.attacks)
		}
	}
}

func (d *Detector) fire(gesture string, confidence float64, ts time.Time, counter *atomic.Uint64) {
	if time.Since(d.lastSent[gesture]) < d.cfg.Refractory {
		return
	}
	d.lastSent[gesture] = time.Now()
	counter.Add(1)
	d.arbiter.Submit(actor.Command{
		Source:     "reflex",
		Gesture:    gesture,
		Confidence: confidence,
		Timestamp:  ts,
	})
	d.logger.Debug("reflex fired", "gesture", gesture, "confidence", confidence)
}

// Status reports the detector's counters for the dashboard.
func (d *Detector) Status() Status {
	return Status{
		Jumps:   d.jumps.Load(),
		Attacks: d.attacks.Load(),
		Skipped: d.skipped.Load(),
	}
}
