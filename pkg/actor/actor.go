// Package actor arbitrates confirmed gestures into keyboard state. It
// owns the full actuation state: facing direction, walking flag, held
// keys and per-action cooldowns. Every path that touches the keyboard
// routes through here, including the reflex fast path, so the cooldown
// table is shared and no two producers can fight over a key.
package actor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wristpad/internal/log"
)

// Canonical action names for the cooldown table. Turn left and turn
// right share one entry so opposite turns cannot chatter.
const (
	ActionJump  = "jump"
	ActionPunch = "punch"
	ActionTurn  = "turn"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultCooldown    = 500 * time.Millisecond
	DefaultTapDuration = 50 * time.Millisecond
	DefaultTick        = 10 * time.Millisecond
	DefaultWalkTimeout = 2500 * time.Millisecond
	DefaultQueueSize   = 32
)

// Direction is which way the character faces. The zero value is Right,
// the spawn-facing default.
type Direction int

const (
	Right Direction = iota
	Left
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// Opposite returns the flipped direction.
func (d Direction) Opposite() Direction {
	if d == Left {
		return Right
	}
	return Left
}

// Keymap binds logical game actions to key names understood by the
// injector.
type Keymap struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Jump   string `json:"jump"`
	Attack string `json:"attack"`
}

// DefaultKeymap is the usual platformer binding.
func DefaultKeymap() Keymap {
	return Keymap{Left: "a", Right: "d", Jump: "space", Attack: "f"}
}

// Directional returns the movement key for a facing direction.
func (k Keymap) Directional(d Direction) string {
	if d == Left {
		return k.Left
	}
	return k.Right
}

// Command asks the actor to apply one confirmed gesture. Source names
// the producing path ("locomotion", "action", "reflex") for logs; all
// sources are arbitrated identically.
type Command struct {
	Source     string    `json:"source"`
	Gesture    string    `json:"gesture"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config parameterizes the actor.
type Config struct {
	Keymap Keymap
	// Cooldowns is the minimum gap between firings, keyed by action
	// name. Missing or non-positive entries get DefaultCooldown.
	Cooldowns map[string]time.Duration
	// TapDuration is how long a discrete action's key stays down so
	// the game registers a tap rather than a hold.
	TapDuration time.Duration
	// Tick drives scheduled key releases and the walk timeout.
	Tick time.Duration
	// WalkTimeout stops walking when no walk confirmation arrives
	// within the window. Zero selects the default, negative disables.
	WalkTimeout time.Duration
	// Facing is the initial facing direction.
	Facing Direction
	// QueueSize bounds the inbound command channel.
	QueueSize int
}

// Status is a point-in-time snapshot of the actor's state.
type Status struct {
	Facing          string   `json:"facing"`
	Walking         bool     `json:"walking"`
	PressedKeys     []string `json:"pressed_keys"`
	Fired           uint64   `json:"fired"`
	Suppressed      uint64   `json:"suppressed"`
	DroppedCommands uint64   `json:"dropped_commands"`
}

// tapRelease is a scheduled key-up for a tapped action key.
type tapRelease struct {
	key string
	at  time.Time
}

// Actor is the single writer of keyboard state.
type Actor struct {
	cfg    Config
	keys   KeyInjector
	cmds   chan Command
	logger *slog.Logger

	mu        sync.Mutex
	facing    Direction
	walking   bool
	pressed   map[string]bool
	lastFired map[string]time.Time
	lastWalk  time.Time
	taps      []tapRelease

	fired      atomic.Uint64
	suppressed atomic.Uint64
	dropped    atomic.Uint64
}

// New builds an actor driving keys through the given injector.
func New(cfg Config, keys KeyInjector) *Actor {
	if cfg.Keymap == (Keymap{}) {
		cfg.Keymap = DefaultKeymap()
	}
	if cfg.Cooldowns == nil {
		cfg.Cooldowns = make(map[string]time.Duration)
	}
	for _, action := range []string{ActionJump, ActionPunch, ActionTurn} {
		if cfg.Cooldowns[action] <= 0 {
			cfg.Cooldowns[action] = DefaultCooldown
		}
	}
	if cfg.TapDuration <= 0 {
		cfg.TapDuration = DefaultTapDuration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.WalkTimeout == 0 {
		cfg.WalkTimeout = DefaultWalkTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Actor{
		cfg:       cfg,
		keys:      keys,
		cmds:      make(chan Command, cfg.QueueSize),
		logger:    log.Component("actor"),
		facing:    cfg.Facing,
		pressed:   make(map[string]bool),
		lastFired: make(map[string]time.Time),
	}
}

// Submit enqueues a command without blocking. It returns false when the
// actor is not keeping up and the command was dropped.
func (a *Actor) Submit(cmd Command) bool {
	select {
	case a.cmds <- cmd:
		return true
	default:
		a.dropped.Add(1)
		return false
	}
}

// Run processes commands until ctx is cancelled. Held keys are always
// released on the way out, clean shutdown or not, so the game is never
// left with a stuck directional input.
func (a *Actor) Run(ctx context.Context) {
	a.logger.Info("actor started",
		"facing", a.cfg.Facing.String(),
		"keymap", a.cfg.Keymap,
		"walk_timeout", a.cfg.WalkTimeout)
	defer a.releaseAll()

	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("actor stopped")
			return
		case cmd := <-a.cmds:
			a.apply(cmd)
		case <-ticker.C:
			a.tick()
		}
	}
}

// apply dispatches one confirmed gesture. Unrecognized labels, which
// include the classifier's negative class, are deliberately ignored:
// they mean "no gesture", not "undo something".
func (a *Actor) apply(cmd Command) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch cmd.Gesture {
	case "walk":
		a.startWalkingLocked(cmd)
	case "idle":
		a.stopWalkingLocked("confirmed idle")
	case "turn_left":
		a.turnLocked(cmd, Left)
	case "turn_right":
		a.turnLocked(cmd, Right)
	case "turn":
		a.turnLocked(cmd, a.facing.Opposite())
	case "jump":
		a.tapLocked(cmd, ActionJump, a.cfg.Keymap.Jump)
	case "punch", "attack":
		a.tapLocked(cmd, ActionPunch, a.cfg.Keymap.Attack)
	default:
		a.logger.Debug("ignoring gesture", "gesture", cmd.Gesture, "source", cmd.Source)
	}
}

func (a *Actor) startWalkingLocked(cmd Command) {
	a.lastWalk = time.Now()
	if a.walking {
		return
	}
	key := a.cfg.Keymap.Directional(a.facing)
	if err := a.pressLocked(key); err != nil {
		return
	}
	a.walking = true
	a.logger.Info("walking started", "facing", a.facing.String(), "key", key, "source", cmd.Source)
}

func (a *Actor) stopWalkingLocked(reason string) {
	if !a.walking {
		return
	}
	a.walking = false
	for _, key := range []string{a.cfg.Keymap.Left, a.cfg.Keymap.Right} {
		if a.pressed[key] {
			a.releaseLocked(key)
		}
	}
	a.logger.Info("walking stopped", "reason", reason)
}

func (a *Actor) turnLocked(cmd Command, to Direction) {
	if to == a.facing {
		return
	}
	if !a.cooldownReadyLocked(ActionTurn) {
		a.suppressed.Add(1)
		a.logger.Debug("turn suppressed by cooldown", "source", cmd.Source)
		return
	}
	from := a.facing
	a.facing = to
	if a.walking {
		// Swap under the state lock: a reader sees the old key held or
		// the new key held, never both and never neither.
		a.releaseLocked(a.cfg.Keymap.Directional(from))
		a.pressLocked(a.cfg.Keymap.Directional(to))
	}
	a.stampLocked(ActionTurn)
	a.fired.Add(1)
	a.logger.Info("turned", "facing", to.String(), "walking", a.walking, "source", cmd.Source)
}

// tapLocked fires a discrete action: interrupt walking, press the key
// and schedule its release one tap-duration later.
func (a *Actor) tapLocked(cmd Command, action, key string) {
	if !a.cooldownReadyLocked(action) {
		a.suppressed.Add(1)
		a.logger.Debug("action suppressed by cooldown", "action", action, "source", cmd.Source)
		return
	}
	a.stopWalkingLocked("interrupted by " + action)
	if err := a.pressLocked(key); err != nil {
		return
	}
	a.taps = append(a.taps, tapRelease{key: key, at: time.Now().Add(a.cfg.TapDuration)})
	a.stampLocked(action)
	a.fired.Add(1)
	a.logger.Info("action fired",
		"action", action,
		"key", key,
		"confidence", cmd.Confidence,
		"source", cmd.Source)
}

// tick releases due tapped keys and enforces the walk keep-alive
// timeout.
func (a *Actor) tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	kept := a.taps[:0]
	for _, tr := range a.taps {
		if now.Before(tr.at) {
			kept = append(kept, tr)
			continue
		}
		a.releaseLocked(tr.key)
	}
	a.taps = kept

	if a.cfg.WalkTimeout > 0 && a.walking && now.Sub(a.lastWalk) > a.cfg.WalkTimeout {
		a.stopWalkingLocked("walk confirmations timed out")
	}
}

func (a *Actor) cooldownReadyLocked(action string) bool {
	last, ok := a.lastFired[action]
	if !ok {
		return true
	}
	return time.Since(last) >= a.cfg.Cooldowns[action]
}

func (a *Actor) stampLocked(action string) {
	a.lastFired[action] = time.Now()
}

func (a *Actor) pressLocked(key string) error {
	if err := a.keys.Press(key); err != nil {
		a.logger.Error("key press failed", "key", key, "error", err)
		return err
	}
	a.pressed[key] = true
	return nil
}

// releaseLocked attempts the key-up and forgets the key either way; a
// failed release cannot be improved by retrying a dead device.
func (a *Actor) releaseLocked(key string) {
	if !a.pressed[key] {
		return
	}
	if err := a.keys.Release(key); err != nil {
		a.logger.Error("key release failed", "key", key, "error", err)
	}
	delete(a.pressed, key)
}

// releaseAll is the mandatory shutdown cleanup.
func (a *Actor) releaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.walking = false
	a.taps = nil
	for key := range a.pressed {
		if err := a.keys.Release(key); err != nil {
			a.logger.Error("key release failed", "key", key, "error", err)
		}
	}
	a.pressed = make(map[string]bool)
	a.logger.Info("all keys released")
}

// Status reports the actor's state for the dashboard.
func (a *Actor) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.pressed))
	for k := range a.pressed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Status{
		Facing:          a.facing.String(),
		Walking:         a.walking,
		PressedKeys:     keys,
		Fired:           a.fired.Load(),
		Suppressed:      a.suppressed.Load(),
		DroppedCommands: a.dropped.Load(),
	}
}
