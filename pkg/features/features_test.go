package features

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func accelAt(i int, x, y, z float64) sensor.Reading {
	return sensor.Reading{
		Timestamp: testBase.Add(time.Duration(i) * 20 * time.Millisecond),
		Kind:      sensor.Acceleration,
		Vec:       sensor.Vec3{X: x, Y: y, Z: z},
	}
}

func gyroAt(i int, x, y, z float64) sensor.Reading {
	return sensor.Reading{
		Timestamp: testBase.Add(time.Duration(i) * 20 * time.Millisecond),
		Kind:      sensor.AngularVelocity,
		Vec:       sensor.Vec3{X: x, Y: y, Z: z},
	}
}

func orientAt(i int, q sensor.Quat) sensor.Reading {
	return sensor.Reading{
		Timestamp: testBase.Add(time.Duration(i) * 20 * time.Millisecond),
		Kind:      sensor.Orientation,
		Quat:      q,
	}
}

func TestExtract_AccelTimeStats(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, 0, 0),
		accelAt(1, 2, 0, 0),
		accelAt(2, 3, 0, 0),
		accelAt(3, 4, 0, 0),
		accelAt(4, 5, 0, 0),
	}

	feats := Extract(window)

	cases := []struct {
		name string
		want float64
	}{
		{"accel_x_mean", 3},
		{"accel_x_std", math.Sqrt(2.5)},
		{"accel_x_min", 1},
		{"accel_x_max", 5},
		{"accel_x_range", 4},
		{"accel_x_median", 3},
	}
	for _, c := range cases {
		got, ok := feats[c.name]
		if !ok {
			t.Errorf("%s missing from features", c.name)
			continue
		}
		if !floatEquals(got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestExtract_SingleKindWindow(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, 2, 3),
		accelAt(1, 4, 5, 6),
		accelAt(2, 7, 8, 9),
	}

	feats := Extract(window)

	for name := range feats {
		if strings.HasPrefix(name, "gyro_") || strings.HasPrefix(name, "rot_") {
			t.Errorf("accel-only window produced %s", name)
		}
	}

	// Reindexing against a schema that mentions other kinds fills zeros.
	vec := Reindex(feats, []string{"gyro_x_rms", "accel_x_mean", "rot_w_mean"})
	if vec[0] != 0 || vec[2] != 0 {
		t.Errorf("absent-kind features = %v and %v, want 0 and 0", vec[0], vec[2])
	}
	if !floatEquals(vec[1], 4) {
		t.Errorf("accel_x_mean = %v, want 4", vec[1])
	}
}

func TestExtract_Deterministic(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, -2, 3),
		gyroAt(1, 0.5, 0.25, -0.75),
		orientAt(2, sensor.Identity()),
		accelAt(3, 2, 1, -1),
		gyroAt(4, -0.5, 0.5, 0.5),
		accelAt(5, 0, 0, 9.8),
	}

	first := Extract(window)
	second := Extract(window)

	if !reflect.DeepEqual(first, second) {
		t.Error("Extract is not deterministic for identical windows")
	}
}

func TestExtract_ShortSeriesSkipsSpectrum(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, 0, 0),
		accelAt(1, 2, 0, 0),
	}

	feats := Extract(window)

	if _, ok := feats["accel_x_fft_max"]; ok {
		t.Error("2-sample series produced FFT features")
	}

	// The schema still resolves those names, as zeros.
	vec := Reindex(feats, []string{"accel_x_fft_max", "accel_x_dominant_freq"})
	if vec[0] != 0 || vec[1] != 0 {
		t.Errorf("short-series FFT features = %v, want zeros", vec)
	}
}

func TestExtract_ConstantSeriesSpectrum(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, 0, 0),
		accelAt(1, 1, 0, 0),
		accelAt(2, 1, 0, 0),
		accelAt(3, 1, 0, 0),
	}

	feats := Extract(window)

	// DFT of a constant puts all energy in bin 0.
	if got := feats["accel_x_fft_max"]; !floatEquals(got, 4) {
		t.Errorf("accel_x_fft_max = %v, want 4", got)
	}
	if got := feats["accel_x_fft_mean"]; !floatEquals(got, 2) {
		t.Errorf("accel_x_fft_mean = %v, want 2", got)
	}
	if got := feats["accel_x_dominant_freq"]; got != 0 {
		t.Errorf("accel_x_dominant_freq = %v, want 0", got)
	}
}

func TestExtract_PeakCount(t *testing.T) {
	window := make([]sensor.Reading, 0, 10)
	for i := 0; i < 9; i++ {
		window = append(window, accelAt(i, 0, 0, 0))
	}
	window = append(window, accelAt(9, 5, 0, 0))

	feats := Extract(window)

	if got := feats["accel_x_peak_count"]; got != 1 {
		t.Errorf("accel_x_peak_count = %v, want 1", got)
	}
}

func TestExtract_WorldFrame(t *testing.T) {
	// 180° about X maps device +Z onto world −Z.
	flip := sensor.Quat{X: 1}
	window := []sensor.Reading{
		orientAt(0, flip),
		accelAt(1, 0, 0, 10),
		accelAt(2, 0, 0, 10),
		accelAt(3, 0, 0, 10),
	}

	feats := Extract(window)

	if got := feats["world_accel_z_mean"]; !floatEquals(got, -10) {
		t.Errorf("world_accel_z_mean = %v, want -10", got)
	}
	if got := feats["world_accel_z_max"]; !floatEquals(got, -10) {
		t.Errorf("world_accel_z_max = %v, want -10", got)
	}
	if got := feats["world_accel_z_range"]; !floatEquals(got, 0) {
		t.Errorf("world_accel_z_range = %v, want 0", got)
	}
}

func TestExtract_NoOrientationNoWorldFeatures(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 1, 2, 3),
		accelAt(1, 4, 5, 6),
	}

	feats := Extract(window)

	if _, ok := feats["world_accel_x_mean"]; ok {
		t.Error("window without orientation produced world features")
	}
}

func TestExtract_GyroStats(t *testing.T) {
	window := []sensor.Reading{
		gyroAt(0, 3, -4, 0),
		gyroAt(1, 4, 2, 0),
	}

	feats := Extract(window)

	if got := feats["gyro_x_rms"]; !floatEquals(got, math.Sqrt(12.5)) {
		t.Errorf("gyro_x_rms = %v, want %v", got, math.Sqrt(12.5))
	}
	if got := feats["gyro_y_max_abs"]; !floatEquals(got, 4) {
		t.Errorf("gyro_y_max_abs = %v, want 4", got)
	}
	if got := feats["gyro_x_range"]; !floatEquals(got, 1) {
		t.Errorf("gyro_x_range = %v, want 1", got)
	}
}

func TestExtract_MagnitudeStats(t *testing.T) {
	window := []sensor.Reading{
		accelAt(0, 3, 4, 0),
		accelAt(1, 3, 4, 0),
	}

	feats := Extract(window)

	if got := feats["accel_magnitude_mean"]; !floatEquals(got, 5) {
		t.Errorf("accel_magnitude_mean = %v, want 5", got)
	}
	if got := feats["accel_magnitude_max"]; !floatEquals(got, 5) {
		t.Errorf("accel_magnitude_max = %v, want 5", got)
	}
	if got := feats["accel_magnitude_std"]; !floatEquals(got, 0) {
		t.Errorf("accel_magnitude_std = %v, want 0", got)
	}
}

func TestExtract_EmptyWindow(t *testing.T) {
	feats := Extract(nil)
	if len(feats) != 0 {
		t.Errorf("empty window produced %d features, want 0", len(feats))
	}
}

func TestReindex_OrderAndDefaults(t *testing.T) {
	feats := map[string]float64{"a": 1, "b": 2, "dropped": 9}

	vec := Reindex(feats, []string{"b", "missing", "a"})

	want := []float64{2, 0, 1}
	if !reflect.DeepEqual(vec, want) {
		t.Errorf("Reindex = %v, want %v", vec, want)
	}
}
