package consensus

import (
	"testing"
	"time"

	"github.com/teslashibe/go-wristpad/pkg/predictor"
)

func pred(gesture string, confidence float64) predictor.Prediction {
	return predictor.Prediction{
		Stream:     "test",
		Gesture:    gesture,
		Confidence: confidence,
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func observeAll(f *Filter, gestures ...string) []Event {
	var events []Event
	for _, g := range gestures {
		if ev, ok := f.Observe(pred(g, 0.9)); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestOneShot_BrokenRunMustRestart(t *testing.T) {
	f := New("action", OneShot, 2, 0.6)

	events := observeAll(f, "jump", "jump", "punch", "jump", "jump")

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	for i, ev := range events {
		if ev.Gesture != "jump" {
			t.Errorf("events[%d].Gesture = %q, want %q", i, ev.Gesture, "jump")
		}
	}
}

func TestOneShot_ClearsHistoryOnConfirm(t *testing.T) {
	f := New("action", OneShot, 2, 0.6)

	// Three in a row confirm once; the fourth completes a fresh run.
	if got := len(observeAll(f, "jump", "jump", "jump")); got != 1 {
		t.Fatalf("after 3 agreeing predictions got %d events, want 1", got)
	}
	if got := len(observeAll(f, "jump")); got != 1 {
		t.Fatalf("after a 4th prediction got %d events, want 1", got)
	}
}

func TestOneShot_RequiresFullRun(t *testing.T) {
	f := New("action", OneShot, 3, 0.6)

	events := observeAll(f, "punch", "punch")
	if len(events) != 0 {
		t.Fatalf("got %d events before run completed, want 0", len(events))
	}
	events = observeAll(f, "punch")
	if len(events) != 1 || events[0].Gesture != "punch" {
		t.Fatalf("got %+v after run completed, want one punch event", events)
	}
}

func TestFilter_LowConfidenceNeverEntersHistory(t *testing.T) {
	f := New("action", OneShot, 2, 0.6)

	if _, ok := f.Observe(pred("jump", 0.9)); ok {
		t.Fatal("confirmed after one accepted prediction")
	}
	if _, ok := f.Observe(pred("jump", 0.4)); ok {
		t.Fatal("confirmed on a below-threshold prediction")
	}
	ev, ok := f.Observe(pred("jump", 0.9))
	if !ok {
		t.Fatal("two accepted agreeing predictions did not confirm")
	}
	if ev.Gesture != "jump" {
		t.Errorf("Gesture = %q, want %q", ev.Gesture, "jump")
	}

	st := f.Status()
	if st.Accepted != 2 || st.Rejected != 1 || st.Confirmed != 1 {
		t.Errorf("Status() = %+v, want accepted 2, rejected 1, confirmed 1", st)
	}
}

func TestContinuous_ReportsTransitionsOnly(t *testing.T) {
	f := New("locomotion", Continuous, 3, 0.6)

	events := observeAll(f, "walk", "walk", "walk")
	if len(events) != 1 || events[0].Gesture != "walk" {
		t.Fatalf("got %+v, want one walk event", events)
	}

	// Sustained agreement does not repeat the event.
	if got := len(observeAll(f, "walk", "walk", "walk")); got != 0 {
		t.Fatalf("got %d events for sustained walk, want 0", got)
	}

	// A full run of the other state is a transition.
	events = observeAll(f, "idle", "idle", "idle")
	if len(events) != 1 || events[0].Gesture != "idle" {
		t.Fatalf("got %+v, want one idle event", events)
	}
}

func TestContinuous_MixedRunDoesNotTransition(t *testing.T) {
	f := New("locomotion", Continuous, 3, 0.6)

	if got := len(observeAll(f, "walk", "walk", "walk")); got != 1 {
		t.Fatalf("setup: got %d events, want 1", got)
	}
	// idle never accumulates three in a row, so the state holds.
	if got := len(observeAll(f, "idle", "idle", "walk", "idle", "walk")); got != 0 {
		t.Fatalf("got %d events from mixed run, want 0", got)
	}
}

func TestFilter_EventCarriesNewestConfidence(t *testing.T) {
	f := New("action", OneShot, 2, 0.6)

	f.Observe(pred("jump", 0.95))
	ev, ok := f.Observe(pred("jump", 0.7))
	if !ok {
		t.Fatal("expected confirmation")
	}
	if ev.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", ev.Confidence)
	}
	if ev.Stream != "action" {
		t.Errorf("Stream = %q, want %q", ev.Stream, "action")
	}
}

func TestFilter_KClampedToOne(t *testing.T) {
	f := New("action", OneShot, 0, 0.6)

	if _, ok := f.Observe(pred("jump", 0.9)); !ok {
		t.Fatal("k=1 filter should confirm every accepted prediction")
	}
}
