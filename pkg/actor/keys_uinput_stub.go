//go:build !linux

package actor

import "fmt"

// newUinputInjector returns an error on non-Linux platforms.
func newUinputInjector(device string) (KeyInjector, error) {
	return nil, fmt.Errorf("uinput is only available on Linux")
}

// validateKeys accepts everything off-Linux; only the uinput backend
// has a fixed key table.
func validateKeys(keys ...string) error {
	return nil
}
