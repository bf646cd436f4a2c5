//go:build linux

package actor

import (
	"fmt"

	"github.com/bendahl/uinput"
)

// keyCodes maps config key names onto Linux input event codes. The
// table covers the keys a platformer binding plausibly uses; anything
// else is rejected at startup by Validate.
var keyCodes = map[string]int{
	"q":     uinput.KeyQ,
	"w":     uinput.KeyW,
	"e":     uinput.KeyE,
	"a":     uinput.KeyA,
	"s":     uinput.KeyS,
	"d":     uinput.KeyD,
	"f":     uinput.KeyF,
	"z":     uinput.KeyZ,
	"x":     uinput.KeyX,
	"c":     uinput.KeyC,
	"space": uinput.KeySpace,
	"enter": uinput.KeyEnter,
	"up":    uinput.KeyUp,
	"down":  uinput.KeyDown,
	"left":  uinput.KeyLeft,
	"right": uinput.KeyRight,
}

// uinputInjector drives a virtual keyboard through /dev/uinput. This is
// the production backend on Linux.
type uinputInjector struct {
	kb uinput.Keyboard
}

func newUinputInjector(device string) (KeyInjector, error) {
	if device == "" {
		device = "/dev/uinput"
	}
	kb, err := uinput.CreateKeyboard(device, []byte("wristpad"))
	if err != nil {
		return nil, fmt.Errorf("creating virtual keyboard on %s: %w", device, err)
	}
	return &uinputInjector{kb: kb}, nil
}

func (u *uinputInjector) Press(key string) error {
	code, err := keyCode(key)
	if err != nil {
		return err
	}
	return u.kb.KeyDown(code)
}

func (u *uinputInjector) Release(key string) error {
	code, err := keyCode(key)
	if err != nil {
		return err
	}
	return u.kb.KeyUp(code)
}

func (u *uinputInjector) Close() error {
	return u.kb.Close()
}

func keyCode(name string) (int, error) {
	code, ok := keyCodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return code, nil
}

// validateKeys reports the first keymap entry the uinput backend cannot
// inject.
func validateKeys(keys ...string) error {
	for _, key := range keys {
		if _, err := keyCode(key); err != nil {
			return err
		}
	}
	return nil
}
