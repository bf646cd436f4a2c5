package actor

import (
	"fmt"
	"sort"
	"sync"
)

// KeyEvent is one recorded injector call. Held is the sorted set of
// keys down after the call completed.
type KeyEvent struct {
	Down bool
	Key  string
	Held []string
}

func (e KeyEvent) String() string {
	if e.Down {
		return fmt.Sprintf("press:%s", e.Key)
	}
	return fmt.Sprintf("release:%s", e.Key)
}

// MockInjector records keystrokes for tests instead of injecting them.
type MockInjector struct {
	mu     sync.Mutex
	events []KeyEvent
	held   map[string]bool
	closed bool

	// PressErr, when set, is returned by every Press call.
	PressErr error
}

// NewMockInjector creates a recording injector.
func NewMockInjector() *MockInjector {
	return &MockInjector{held: make(map[string]bool)}
}

func (m *MockInjector) Press(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PressErr != nil {
		return m.PressErr
	}
	m.held[key] = true
	m.events = append(m.events, KeyEvent{Down: true, Key: key, Held: m.heldLocked()})
	return nil
}

func (m *MockInjector) Release(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.events = append(m.events, KeyEvent{Down: false, Key: key, Held: m.heldLocked()})
	return nil
}

func (m *MockInjector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of the recorded calls in order.
func (m *MockInjector) Events() []KeyEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]KeyEvent(nil), m.events...)
}

// Held returns the sorted set of keys currently down.
func (m *MockInjector) Held() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldLocked()
}

// Presses counts how many times key was pressed.
func (m *MockInjector) Presses(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Down && e.Key == key {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (m *MockInjector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockInjector) heldLocked() []string {
	keys := make([]string, 0, len(m.held))
	for k := range m.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
