// Package config loads and validates wristpad configuration. Settings
// come from a JSON file in the shape the watch companion app expects,
// with a handful of WRISTPAD_* environment overrides for quick
// experiments.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Seconds is a duration expressed as float seconds in JSON, matching
// how the watch companion config expresses time.
type Seconds float64

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Network holds transport addresses and feed supervision settings.
type Network struct {
	// ListenAddr is the UDP address the watch streams to.
	ListenAddr string `json:"listen_addr"`
	// DashboardAddr serves the web dashboard; empty disables it.
	DashboardAddr string `json:"dashboard_addr"`
	// IdleTimeout flags the feed as idle after this long without a
	// packet.
	IdleTimeout Seconds `json:"idle_timeout_seconds"`
	// Discovery advertises the listener over mDNS so the watch app
	// can find it without typing an IP.
	Discovery bool `json:"discovery"`
}

// Models holds classifier artifact paths.
type Models struct {
	Locomotion string `json:"locomotion"`
	Action     string `json:"action"`
}

// Stream parameterizes one recognition stream.
type Stream struct {
	WindowSeconds   Seconds `json:"window_seconds"`
	FillRatio       float64 `json:"fill_ratio"`
	PredictInterval Seconds `json:"predict_interval_seconds"`
}

// WindowSamples converts the window length to a sample count at the
// given feed rate.
func (s Stream) WindowSamples(rateHz int) int {
	return int(float64(s.WindowSeconds) * float64(rateHz))
}

// Streams holds the two concurrent recognition streams. Locomotion is
// long and slow for sustained states, action short and fast for snap
// gestures.
type Streams struct {
	Locomotion Stream `json:"locomotion"`
	Action     Stream `json:"action"`
}

// Consensus tunes the agreement gate.
type Consensus struct {
	K         int     `json:"k"`
	Threshold float64 `json:"confidence_threshold"`
}

// Keys binds logical actions to key names.
type Keys struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Jump   string `json:"jump"`
	Attack string `json:"attack"`
}

// Actor tunes arbitration and key actuation.
type Actor struct {
	Keys     Keys `json:"keys"`
	Cooldown struct {
		Jump  Seconds `json:"jump_seconds"`
		Punch Seconds `json:"punch_seconds"`
		Turn  Seconds `json:"turn_seconds"`
	} `json:"cooldown"`
	TapDuration Seconds `json:"tap_seconds"`
	WalkTimeout Seconds `json:"walk_timeout_seconds"`
	Facing      string  `json:"facing"`
	// Backend selects the key injector: auto, uinput or log.
	Backend string `json:"backend"`
	// Device is the uinput device path; empty means /dev/uinput.
	Device string `json:"uinput_device,omitempty"`
}

// Reflex tunes the threshold fast path.
type Reflex struct {
	Enabled         bool    `json:"enabled"`
	JumpThreshold   float64 `json:"jump_threshold"`
	AttackThreshold float64 `json:"attack_threshold"`
	StabilityBound  float64 `json:"stability_threshold"`
	Cooldown        Seconds `json:"cooldown_seconds"`
}

// Config is the full wristpad configuration.
type Config struct {
	// SampleRate is the watch feed rate in Hz.
	SampleRate int       `json:"sample_rate_hz"`
	Network    Network   `json:"network"`
	Models     Models    `json:"models"`
	Streams    Streams   `json:"streams"`
	Consensus  Consensus `json:"consensus"`
	Actor      Actor     `json:"actor"`
	Reflex     Reflex    `json:"reflex"`
}

// Default returns the stock configuration for a 50 Hz watch feed.
func Default() Config {
	cfg := Config{
		SampleRate: 50,
		Network: Network{
			ListenAddr:    ":5005",
			DashboardAddr: ":8787",
			IdleTimeout:   2.0,
			Discovery:     true,
		},
		Models: Models{
			Locomotion: "models/locomotion.json",
			Action:     "models/action.json",
		},
		Streams: Streams{
			Locomotion: Stream{WindowSeconds: 5.0, FillRatio: 0.6, PredictInterval: 0.2},
			Action:     Stream{WindowSeconds: 1.5, FillRatio: 0.7, PredictInterval: 0.1},
		},
		Consensus: Consensus{K: 3, Threshold: 0.6},
		Reflex: Reflex{
			Enabled:         true,
			JumpThreshold:   15.0,
			AttackThreshold: 12.0,
			StabilityBound:  5.0,
			Cooldown:        0.3,
		},
	}
	cfg.Actor.Keys = Keys{Left: "a", Right: "d", Jump: "space", Attack: "f"}
	cfg.Actor.Cooldown.Jump = 0.5
	cfg.Actor.Cooldown.Punch = 0.5
	cfg.Actor.Cooldown.Turn = 0.5
	cfg.Actor.TapDuration = 0.05
	cfg.Actor.WalkTimeout = 2.5
	cfg.Actor.Facing = "right"
	cfg.Actor.Backend = "auto"
	return cfg
}

// Load reads a config file over the defaults: fields present in the
// file override, everything else keeps its stock value. Environment
// overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when
// the file does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("WRISTPAD_LISTEN_ADDR"); addr != "" {
		c.Network.ListenAddr = addr
	}
	if addr := os.Getenv("WRISTPAD_DASHBOARD_ADDR"); addr != "" {
		c.Network.DashboardAddr = addr
	}
	if backend := os.Getenv("WRISTPAD_KEY_BACKEND"); backend != "" {
		c.Actor.Backend = backend
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %d", c.SampleRate)
	}
	if c.Network.ListenAddr == "" {
		return fmt.Errorf("network.listen_addr is required")
	}
	if c.Network.IdleTimeout <= 0 {
		return fmt.Errorf("network.idle_timeout_seconds must be positive, got %v", c.Network.IdleTimeout)
	}
	if c.Models.Locomotion == "" || c.Models.Action == "" {
		return fmt.Errorf("models.locomotion and models.action are required")
	}
	for _, s := range []struct {
		name   string
		stream Stream
	}{
		{"locomotion", c.Streams.Locomotion},
		{"action", c.Streams.Action},
	} {
		if s.stream.WindowSeconds <= 0 {
			return fmt.Errorf("streams.%s.window_seconds must be positive, got %v", s.name, s.stream.WindowSeconds)
		}
		if s.stream.FillRatio <= 0 || s.stream.FillRatio > 1 {
			return fmt.Errorf("streams.%s.fill_ratio must be in (0, 1], got %v", s.name, s.stream.FillRatio)
		}
		if s.stream.PredictInterval <= 0 {
			return fmt.Errorf("streams.%s.predict_interval_seconds must be positive, got %v", s.name, s.stream.PredictInterval)
		}
	}
	if c.Consensus.K < 1 {
		return fmt.Errorf("consensus.k must be at least 1, got %d", c.Consensus.K)
	}
	if c.Consensus.Threshold < 0 || c.Consensus.Threshold > 1 {
		return fmt.Errorf("consensus.confidence_threshold must be in [0, 1], got %v", c.Consensus.Threshold)
	}
	keys := c.Actor.Keys
	if keys.Left == "" || keys.Right == "" || keys.Jump == "" || keys.Attack == "" {
		return fmt.Errorf("actor.keys must bind left, right, jump and attack")
	}
	if keys.Left == keys.Right {
		return fmt.Errorf("actor.keys.left and actor.keys.right must differ")
	}
	if c.Actor.Facing != "left" && c.Actor.Facing != "right" {
		return fmt.Errorf("actor.facing must be %q or %q, got %q", "left", "right", c.Actor.Facing)
	}
	if c.Reflex.Enabled {
		if c.Reflex.JumpThreshold <= 0 || c.Reflex.AttackThreshold <= 0 || c.Reflex.StabilityBound <= 0 {
			return fmt.Errorf("reflex thresholds must be positive when the reflex layer is enabled")
		}
	}
	return nil
}
