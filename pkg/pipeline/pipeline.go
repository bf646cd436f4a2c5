// Package pipeline assembles the full watch-to-keyboard chain: UDP
// collector, windowed predictors, consensus filters, reflex fast path,
// actor and the dashboard. It owns component lifecycle and the
// shutdown ordering that guarantees held keys are released before the
// process exits.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-wristpad/internal/config"
	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/actor"
	"github.com/teslashibe/go-wristpad/pkg/collector"
	"github.com/teslashibe/go-wristpad/pkg/consensus"
	"github.com/teslashibe/go-wristpad/pkg/discovery"
	"github.com/teslashibe/go-wristpad/pkg/model"
	"github.com/teslashibe/go-wristpad/pkg/predictor"
	"github.com/teslashibe/go-wristpad/pkg/reflex"
	"github.com/teslashibe/go-wristpad/pkg/web"
)

// subscriberBuffer sizes each consumer's private reading queue. At the
// watch's packet rate this is over a second of headroom before the
// drop-newest policy kicks in.
const subscriberBuffer = 256

// statusInterval is the dashboard status publish cadence.
const statusInterval = time.Second

// Status aggregates component health into the document served at
// /api/status and pushed over /ws/status.
type Status struct {
	Session   string             `json:"session"`
	Started   time.Time          `json:"started"`
	UptimeSec float64            `json:"uptime_seconds"`
	Collector collector.Status   `json:"collector"`
	Streams   []predictor.Status `json:"streams"`
	Consensus []consensus.Status `json:"consensus"`
	Actor     actor.Status       `json:"actor"`
	Reflex    *reflex.Status     `json:"reflex,omitempty"`
}

// App wires the pipeline together and manages its lifecycle.
type App struct {
	cfg     config.Config
	session string
	logger  *slog.Logger
	started time.Time

	collector  *collector.Collector
	locomotion *predictor.Predictor
	action     *predictor.Predictor
	locFilter  *consensus.Filter
	actFilter  *consensus.Filter
	injector   actor.KeyInjector
	actor      *actor.Actor
	reflex     *reflex.Detector
	discovery  *discovery.Service
	web        *web.Server
}

// New validates the configuration and creates an unstarted app. Call
// Init next to acquire resources, then Run.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		session: uuid.NewString(),
		logger:  log.Component("pipeline"),
	}, nil
}

// Session returns this run's identifier, stamped on status documents.
func (a *App) Session() string {
	return a.session
}

// SetInjector overrides the key injector the config would select. Must
// be called before Init.
func (a *App) SetInjector(k actor.KeyInjector) {
	a.injector = k
}

// Init acquires every startup resource: model artifacts, the sensor
// socket and the key injector. Any failure here is fatal; the pipeline
// refuses to start degraded rather than run without a classifier or a
// keyboard.
func (a *App) Init() error {
	locModel, err := model.Load(a.cfg.Models.Locomotion)
	if err != nil {
		return fmt.Errorf("locomotion model: %w", err)
	}
	actModel, err := model.Load(a.cfg.Models.Action)
	if err != nil {
		return fmt.Errorf("action model: %w", err)
	}

	a.collector, err = collector.New(a.cfg.Network.ListenAddr, a.cfg.Network.IdleTimeout.Duration())
	if err != nil {
		return err
	}

	a.locomotion = predictor.New(predictor.Config{
		Name:       "locomotion",
		WindowSize: a.cfg.Streams.Locomotion.WindowSamples(a.cfg.SampleRate),
		FillRatio:  a.cfg.Streams.Locomotion.FillRatio,
		Interval:   a.cfg.Streams.Locomotion.PredictInterval.Duration(),
	}, locModel, a.collector.Subscribe("locomotion", subscriberBuffer).Readings())
	a.action = predictor.New(predictor.Config{
		Name:       "action",
		WindowSize: a.cfg.Streams.Action.WindowSamples(a.cfg.SampleRate),
		FillRatio:  a.cfg.Streams.Action.FillRatio,
		Interval:   a.cfg.Streams.Action.PredictInterval.Duration(),
	}, actModel, a.collector.Subscribe("action", subscriberBuffer).Readings())

	a.locFilter = consensus.New("locomotion", consensus.Continuous, a.cfg.Consensus.K, a.cfg.Consensus.Threshold)
	a.actFilter = consensus.New("action", consensus.OneShot, a.cfg.Consensus.K, a.cfg.Consensus.Threshold)

	keymap := actor.Keymap{
		Left:   a.cfg.Actor.Keys.Left,
		Right:  a.cfg.Actor.Keys.Right,
		Jump:   a.cfg.Actor.Keys.Jump,
		Attack: a.cfg.Actor.Keys.Attack,
	}
	if a.cfg.Actor.Backend != actor.BackendLog {
		if err := keymap.Validate(); err != nil {
			return fmt.Errorf("key map: %w", err)
		}
	}
	if a.injector == nil {
		a.injector, err = actor.NewInjector(a.cfg.Actor.Backend, a.cfg.Actor.Device)
		if err != nil {
			return fmt.Errorf("key injector: %w", err)
		}
	}

	facing := actor.Right
	if a.cfg.Actor.Facing == "left" {
		facing = actor.Left
	}
	a.actor = actor.New(actor.Config{
		Keymap: keymap,
		Cooldowns: map[string]time.Duration{
			actor.ActionJump:  a.cfg.Actor.Cooldown.Jump.Duration(),
			actor.ActionPunch: a.cfg.Actor.Cooldown.Punch.Duration(),
			actor.ActionTurn:  a.cfg.Actor.Cooldown.Turn.Duration(),
		},
		TapDuration: a.cfg.Actor.TapDuration.Duration(),
		WalkTimeout: a.cfg.Actor.WalkTimeout.Duration(),
		Facing:      facing,
	}, a.injector)

	if a.cfg.Reflex.Enabled {
		a.reflex = reflex.New(reflex.Config{
			JumpThreshold:   a.cfg.Reflex.JumpThreshold,
			AttackThreshold: a.cfg.Reflex.AttackThreshold,
			StabilityBound:  a.cfg.Reflex.StabilityBound,
			Refractory:      a.cfg.Reflex.Cooldown.Duration(),
		}, a.actor, a.collector.Subscribe("reflex", subscriberBuffer).Readings())
	}

	if a.cfg.Network.Discovery {
		a.discovery = discovery.New(a.collector.Addr().Port)
	}
	if a.cfg.Network.DashboardAddr != "" {
		a.web = web.NewServer(a.cfg.Network.DashboardAddr, func() any { return a.Status() })
	}

	a.started = time.Now()
	return nil
}

// Addr returns the bound sensor socket address. Valid after Init.
func (a *App) Addr() *net.UDPAddr {
	return a.collector.Addr()
}

// Run drives the pipeline until ctx is cancelled or the collector dies.
// The actor is waited on before the injector closes, so a stuck
// directional key cannot survive shutdown by any exit path.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("pipeline starting",
		"session", a.session,
		"listen", a.collector.Addr().String(),
		"reflex", a.reflex != nil)

	var actorDone sync.WaitGroup
	actorDone.Add(1)
	go func() {
		defer actorDone.Done()
		a.actor.Run(ctx)
	}()

	var wg sync.WaitGroup
	runErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.collector.Run(ctx); err != nil {
			select {
			case runErr <- err:
			default:
			}
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.locomotion.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.action.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.forward(ctx, a.locomotion, a.locFilter, canonicalLocomotion)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.forward(ctx, a.action, a.actFilter, nil)
	}()

	if a.reflex != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.reflex.Run(ctx)
		}()
	}

	if a.web != nil {
		a.web.StartAsync(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.publishStatus(ctx)
		}()
	}

	if a.discovery != nil {
		if err := a.discovery.Start(); err != nil {
			a.logger.Warn("discovery registration failed", "err", err)
		} else {
			defer a.discovery.Stop()
		}
	}

	<-ctx.Done()

	// Keys must be provably up before the virtual keyboard goes away.
	actorDone.Wait()
	if err := a.injector.Close(); err != nil {
		a.logger.Warn("closing key injector", "err", err)
	}
	wg.Wait()

	select {
	case err := <-runErr:
		return err
	default:
	}
	a.logger.Info("pipeline stopped", "session", a.session)
	return nil
}

// forward drains one predictor through its consensus filter, publishes
// confirmed events to the dashboard and submits them for arbitration.
func (a *App) forward(ctx context.Context, p *predictor.Predictor, f *consensus.Filter, canonical func(string) string) {
	for {
		select {
		case <-ctx.Done():
			return
		case pred := <-p.Predictions():
			ev, confirmed := f.Observe(pred)
			if !confirmed {
				continue
			}
			if a.web != nil {
				a.web.PublishEvent(ev)
			}
			gesture := ev.Gesture
			if canonical != nil {
				gesture = canonical(gesture)
			}
			a.actor.Submit(actor.Command{
				Source:     ev.Stream,
				Gesture:    gesture,
				Confidence: ev.Confidence,
				Timestamp:  ev.Timestamp,
			})
		}
	}
}

// canonicalLocomotion collapses the locomotion artifact's vocabulary
// onto the two commands the actor distinguishes. Whatever rest class
// the artifact was trained with (idle, noise, standing) means the same
// thing here: stop walking.
func canonicalLocomotion(label string) string {
	switch label {
	case "walk", "walking":
		return "walk"
	default:
		return "idle"
	}
}

// publishStatus pushes the aggregate status document to dashboard
// subscribers once a second.
func (a *App) publishStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.web.PublishStatus(a.Status())
		}
	}
}

// Status snapshots every component. Valid after Init.
func (a *App) Status() Status {
	st := Status{
		Session:   a.session,
		Started:   a.started,
		UptimeSec: time.Since(a.started).Seconds(),
		Collector: a.collector.Status(),
		Streams:   []predictor.Status{a.locomotion.Status(), a.action.Status()},
		Consensus: []consensus.Status{a.locFilter.Status(), a.actFilter.Status()},
		Actor:     a.actor.Status(),
	}
	if a.reflex != nil {
		r := a.reflex.Status()
		st.Reflex = &r
	}
	return st
}
