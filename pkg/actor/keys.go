package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/teslashibe/go-wristpad/internal/log"
)

// Injector backends.
const (
	BackendAuto   = "auto"
	BackendUinput = "uinput"
	BackendLog    = "log"
)

// ErrUnknownKey indicates a key name the injector has no code for.
var ErrUnknownKey = errors.New("unknown key name")

// KeyInjector abstracts the keystroke backend so arbitration logic can
// be tested without a real input device.
type KeyInjector interface {
	Press(key string) error
	Release(key string) error
	Close() error
}

// NewInjector creates a key injector for the given backend. BackendAuto
// picks uinput on Linux and the logging injector elsewhere. device is
// the uinput device path; empty means /dev/uinput.
func NewInjector(backend, device string) (KeyInjector, error) {
	if backend == "" || backend == BackendAuto {
		if runtime.GOOS == "linux" {
			backend = BackendUinput
		} else {
			backend = BackendLog
		}
	}
	switch backend {
	case BackendUinput:
		return newUinputInjector(device)
	case BackendLog:
		return NewLogInjector(), nil
	default:
		return nil, fmt.Errorf("unsupported injector backend: %s", backend)
	}
}

// LogInjector logs keystrokes instead of injecting them. Used for dry
// runs and on platforms without uinput.
type LogInjector struct {
	logger *slog.Logger
}

// NewLogInjector creates a logging injector.
func NewLogInjector() *LogInjector {
	return &LogInjector{logger: log.Component("keys")}
}

func (l *LogInjector) Press(key string) error {
	l.logger.Info("key down", "key", key)
	return nil
}

func (l *LogInjector) Release(key string) error {
	l.logger.Info("key up", "key", key)
	return nil
}

func (l *LogInjector) Close() error { return nil }

// Validate reports whether every key in the map can be injected on this
// platform. Called at startup so a typo in the key map fails fast
// instead of surfacing mid-game.
func (k Keymap) Validate() error {
	return validateKeys(k.Left, k.Right, k.Jump, k.Attack)
}
