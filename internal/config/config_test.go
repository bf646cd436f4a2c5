package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestSeconds_Duration(t *testing.T) {
	if got := Seconds(0.3).Duration(); got != 300*time.Millisecond {
		t.Errorf("Seconds(0.3).Duration() = %v, want 300ms", got)
	}
	if got := Seconds(5).Duration(); got != 5*time.Second {
		t.Errorf("Seconds(5).Duration() = %v, want 5s", got)
	}
}

func TestStream_WindowSamples(t *testing.T) {
	s := Stream{WindowSeconds: 5.0}
	if got := s.WindowSamples(50); got != 250 {
		t.Errorf("WindowSamples(50) = %d, want 250", got)
	}
	s.WindowSeconds = 1.5
	if got := s.WindowSamples(50); got != 75 {
		t.Errorf("WindowSamples(50) = %d, want 75", got)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"network": {"listen_addr": ":6000", "idle_timeout_seconds": 3.5, "discovery": false},
		"consensus": {"k": 2, "confidence_threshold": 0.8},
		"actor": {"keys": {"left": "left", "right": "right", "jump": "z", "attack": "x"},
		          "facing": "left", "backend": "log"}
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Network.ListenAddr != ":6000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Network.ListenAddr, ":6000")
	}
	if cfg.Network.IdleTimeout != 3.5 {
		t.Errorf("IdleTimeout = %v, want 3.5", cfg.Network.IdleTimeout)
	}
	if cfg.Consensus.K != 2 || cfg.Consensus.Threshold != 0.8 {
		t.Errorf("Consensus = %+v, want k 2 threshold 0.8", cfg.Consensus)
	}
	if cfg.Actor.Keys.Jump != "z" || cfg.Actor.Facing != "left" {
		t.Errorf("Actor = %+v, want jump z facing left", cfg.Actor)
	}

	// Untouched sections keep their stock values.
	if cfg.SampleRate != 50 {
		t.Errorf("SampleRate = %d, want default 50", cfg.SampleRate)
	}
	if cfg.Streams.Locomotion.WindowSeconds != 5.0 {
		t.Errorf("Locomotion.WindowSeconds = %v, want default 5.0", cfg.Streams.Locomotion.WindowSeconds)
	}
	if !cfg.Reflex.Enabled {
		t.Error("Reflex.Enabled = false, want default true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() of invalid JSON succeeded")
	}
}

func TestLoadOrDefault_FallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Network.ListenAddr != ":5005" {
		t.Errorf("ListenAddr = %q, want default %q", cfg.Network.ListenAddr, ":5005")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, "sample_rate_hz"},
		{"empty listen addr", func(c *Config) { c.Network.ListenAddr = "" }, "listen_addr"},
		{"zero idle timeout", func(c *Config) { c.Network.IdleTimeout = 0 }, "idle_timeout"},
		{"missing model", func(c *Config) { c.Models.Action = "" }, "models"},
		{"zero window", func(c *Config) { c.Streams.Action.WindowSeconds = 0 }, "window_seconds"},
		{"fill ratio above one", func(c *Config) { c.Streams.Locomotion.FillRatio = 1.2 }, "fill_ratio"},
		{"zero interval", func(c *Config) { c.Streams.Action.PredictInterval = 0 }, "predict_interval"},
		{"zero k", func(c *Config) { c.Consensus.K = 0 }, "consensus.k"},
		{"threshold above one", func(c *Config) { c.Consensus.Threshold = 1.5 }, "confidence_threshold"},
		{"missing key binding", func(c *Config) { c.Actor.Keys.Attack = "" }, "actor.keys"},
		{"same directional keys", func(c *Config) { c.Actor.Keys.Right = c.Actor.Keys.Left }, "must differ"},
		{"bad facing", func(c *Config) { c.Actor.Facing = "up" }, "facing"},
		{"bad reflex threshold", func(c *Config) { c.Reflex.JumpThreshold = -1 }, "reflex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("WRISTPAD_LISTEN_ADDR", ":7100")
	t.Setenv("WRISTPAD_KEY_BACKEND", "log")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Network.ListenAddr != ":7100" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Network.ListenAddr, ":7100")
	}
	if cfg.Actor.Backend != "log" {
		t.Errorf("Backend = %q, want %q", cfg.Actor.Backend, "log")
	}
}
