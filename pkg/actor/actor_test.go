package actor

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Cooldowns: map[string]time.Duration{
			ActionJump:  150 * time.Millisecond,
			ActionPunch: 150 * time.Millisecond,
			ActionTurn:  time.Hour,
		},
		TapDuration: 30 * time.Millisecond,
		Tick:        5 * time.Millisecond,
		WalkTimeout: -1,
	}
}

func startActor(t *testing.T, cfg Config, keys KeyInjector) *Actor {
	t.Helper()
	a := New(cfg, keys)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("actor did not stop within 1s")
		}
	})
	return a
}

func submit(t *testing.T, a *Actor, source, gesture string) {
	t.Helper()
	if !a.Submit(Command{Source: source, Gesture: gesture, Confidence: 0.9, Timestamp: time.Now()}) {
		t.Fatalf("command %q dropped", gesture)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func held(keys *MockInjector, key string) func() bool {
	return func() bool {
		for _, k := range keys.Held() {
			if k == key {
				return true
			}
		}
		return false
	}
}

func notHeld(keys *MockInjector, key string) func() bool {
	return func() bool { return !held(keys, key)() }
}

// assertNeverBothDirections scans the full event history for any moment
// where both movement keys were down.
func assertNeverBothDirections(t *testing.T, keys *MockInjector, left, right string) {
	t.Helper()
	for i, e := range keys.Events() {
		both := 0
		for _, k := range e.Held {
			if k == left || k == right {
				both++
			}
		}
		if both > 1 {
			t.Fatalf("event %d (%s): both directional keys held: %v", i, e, e.Held)
		}
	}
}

func TestActor_WalkHoldsFacingKey(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")

	st := a.Status()
	if !st.Walking {
		t.Error("Status().Walking = false, want true")
	}
	if st.Facing != "right" {
		t.Errorf("Status().Facing = %q, want %q", st.Facing, "right")
	}

	submit(t, a, "locomotion", "idle")
	waitFor(t, notHeld(keys, "d"), "idle did not release the facing key")
	if a.Status().Walking {
		t.Error("Status().Walking = true after idle, want false")
	}
	assertNeverBothDirections(t, keys, "a", "d")
}

func TestActor_WalkConfirmationIsKeepAlive(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")
	submit(t, a, "locomotion", "walk")
	submit(t, a, "locomotion", "walk")

	waitFor(t, func() bool { return len(a.cmds) == 0 }, "commands not drained")
	if got := keys.Presses("d"); got != 1 {
		t.Errorf("repeated walk confirmations pressed %d times, want 1", got)
	}
}

func TestActor_TurnSwapsKeysDirectly(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")

	submit(t, a, "action", "turn_left")
	waitFor(t, held(keys, "a"), "turn did not press the new direction key")

	events := keys.Events()
	swap := -1
	for i, e := range events {
		if !e.Down && e.Key == "d" {
			swap = i
			break
		}
	}
	if swap < 0 {
		t.Fatalf("no release of old direction key in %v", events)
	}
	next := events[swap+1]
	if !next.Down || next.Key != "a" {
		t.Fatalf("event after release:d = %s, want press:a", next)
	}

	st := a.Status()
	if st.Facing != "left" || !st.Walking {
		t.Errorf("Status() = %+v, want facing left and walking", st)
	}
	if len(st.PressedKeys) != 1 || st.PressedKeys[0] != "a" {
		t.Errorf("PressedKeys = %v, want [a]", st.PressedKeys)
	}
	assertNeverBothDirections(t, keys, "a", "d")
}

func TestActor_TurnWhileIdleOnlyChangesFacing(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "action", "turn_left")
	waitFor(t, func() bool { return a.Status().Facing == "left" }, "facing did not change")

	if got := len(keys.Events()); got != 0 {
		t.Errorf("turn while idle produced %d key events, want 0", got)
	}
}

func TestActor_OppositeTurnsShareCooldown(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "action", "turn_left")
	submit(t, a, "action", "turn_right")

	waitFor(t, func() bool { return a.Status().Suppressed > 0 }, "second turn was not suppressed")
	if got := a.Status().Facing; got != "left" {
		t.Errorf("Facing = %q after suppressed turn back, want %q", got, "left")
	}
}

func TestActor_JumpCooldownFiresOnce(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "action", "jump")
	submit(t, a, "action", "jump")
	waitFor(t, func() bool { return a.Status().Suppressed > 0 }, "second jump was not suppressed")
	if got := keys.Presses("space"); got != 1 {
		t.Errorf("two jumps within cooldown pressed %d times, want 1", got)
	}

	time.Sleep(200 * time.Millisecond)
	submit(t, a, "action", "jump")
	waitFor(t, func() bool { return keys.Presses("space") == 2 }, "jump after cooldown did not fire")
}

func TestActor_DiscreteActionInterruptsWalking(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")

	submit(t, a, "action", "punch")
	waitFor(t, held(keys, "f"), "punch did not press its key")

	if a.Status().Walking {
		t.Error("Status().Walking = true during punch, want false")
	}

	events := keys.Events()
	releaseD, pressF := -1, -1
	for i, e := range events {
		if !e.Down && e.Key == "d" {
			releaseD = i
		}
		if e.Down && e.Key == "f" {
			pressF = i
		}
	}
	if releaseD < 0 || pressF < 0 || releaseD > pressF {
		t.Errorf("walk key was not released before the action key: %v", events)
	}
}

func TestActor_TapReleasesAfterHold(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "action", "jump")
	waitFor(t, held(keys, "space"), "jump did not press its key")
	waitFor(t, notHeld(keys, "space"), "tapped key was never released")

	if got := len(a.Status().PressedKeys); got != 0 {
		t.Errorf("PressedKeys = %v after tap completed, want none", a.Status().PressedKeys)
	}
}

func TestActor_ShutdownReleasesHeldKeys(t *testing.T) {
	keys := NewMockInjector()
	a := New(testConfig(), keys)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx)
	}()

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actor did not stop within 1s")
	}

	if got := keys.Held(); len(got) != 0 {
		t.Errorf("keys still held after shutdown: %v", got)
	}
}

func TestActor_IgnoresUnknownGestures(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")
	before := len(keys.Events())

	submit(t, a, "action", "negative")
	submit(t, a, "action", "noise")
	submit(t, a, "action", "wave")
	waitFor(t, func() bool { return len(a.cmds) == 0 }, "commands not drained")

	st := a.Status()
	if !st.Walking {
		t.Error("non-gesture labels stopped walking")
	}
	if got := len(keys.Events()); got != before {
		t.Errorf("non-gesture labels produced %d key events", got-before)
	}
}

func TestActor_WalkTimeoutStopsWalking(t *testing.T) {
	cfg := testConfig()
	cfg.WalkTimeout = 60 * time.Millisecond
	keys := NewMockInjector()
	a := startActor(t, cfg, keys)

	submit(t, a, "locomotion", "walk")
	waitFor(t, held(keys, "d"), "walk did not press the facing key")

	waitFor(t, notHeld(keys, "d"), "stale walk state was not timed out")
	if a.Status().Walking {
		t.Error("Status().Walking = true after timeout, want false")
	}
}

func TestActor_ReflexAndClassifierShareCooldowns(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "reflex", "jump")
	submit(t, a, "action", "jump")
	waitFor(t, func() bool { return a.Status().Suppressed > 0 }, "classifier jump was not suppressed")

	if got := keys.Presses("space"); got != 1 {
		t.Errorf("reflex then classifier jump pressed %d times, want 1", got)
	}
}

func TestActor_SubmitReportsDrops(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	a := New(cfg, NewMockInjector())

	if !a.Submit(Command{Gesture: "jump"}) {
		t.Fatal("first submit dropped with empty queue")
	}
	if a.Submit(Command{Gesture: "jump"}) {
		t.Fatal("second submit accepted with full queue")
	}
	if got := a.Status().DroppedCommands; got != 1 {
		t.Errorf("DroppedCommands = %d, want 1", got)
	}
}

func TestActor_ReflexAttackMapsToPunch(t *testing.T) {
	keys := NewMockInjector()
	a := startActor(t, testConfig(), keys)

	submit(t, a, "reflex", "attack")
	waitFor(t, func() bool { return keys.Presses("f") == 1 }, "attack did not press the punch key")

	submit(t, a, "action", "punch")
	waitFor(t, func() bool { return a.Status().Suppressed > 0 }, "punch did not share the attack cooldown")
}
