// Package features turns a window of sensor readings into the named
// statistical and spectral features the gesture classifiers consume.
package features

import (
	"math"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// minSpectrumSamples is the shortest series worth transforming; below it
// the FFT-derived features stay at zero.
const minSpectrumSamples = 3

var axes = [3]string{"x", "y", "z"}

// Extract computes every feature the trained classifiers know about from
// one window snapshot. Sensor kinds absent from the window contribute no
// entries; Reindex later fills those with zeros. Degenerate statistics
// (too few samples for a variance, say) are written as zero rather than
// NaN so a sparse window can never poison the model input.
func Extract(window []sensor.Reading) map[string]float64 {
	feats := make(map[string]float64, 96)

	var (
		accel   [3][]float64
		gyro    [3][]float64
		rot     [4][]float64
		accelR  []sensor.Reading
		gyroVec []sensor.Vec3
		orient  []sensor.Reading
	)
	for _, r := range window {
		switch r.Kind {
		case sensor.Acceleration:
			accel[0] = append(accel[0], r.Vec.X)
			accel[1] = append(accel[1], r.Vec.Y)
			accel[2] = append(accel[2], r.Vec.Z)
			accelR = append(accelR, r)
		case sensor.AngularVelocity:
			gyro[0] = append(gyro[0], r.Vec.X)
			gyro[1] = append(gyro[1], r.Vec.Y)
			gyro[2] = append(gyro[2], r.Vec.Z)
			gyroVec = append(gyroVec, r.Vec)
		case sensor.Orientation:
			rot[0] = append(rot[0], r.Quat.X)
			rot[1] = append(rot[1], r.Quat.Y)
			rot[2] = append(rot[2], r.Quat.Z)
			rot[3] = append(rot[3], r.Quat.W)
			orient = append(orient, r)
		}
	}

	// Accelerometer: full time-domain set plus spectral shape.
	for i, axis := range axes {
		vals := accel[i]
		if len(vals) == 0 {
			continue
		}
		name := "accel_" + axis
		mean, std := stat.MeanStdDev(vals, nil)
		put(feats, name+"_mean", mean)
		put(feats, name+"_std", std)
		put(feats, name+"_max", floats.Max(vals))
		put(feats, name+"_min", floats.Min(vals))
		put(feats, name+"_range", floats.Max(vals)-floats.Min(vals))
		put(feats, name+"_median", median(vals))
		put(feats, name+"_skew", stat.Skew(vals, nil))
		put(feats, name+"_kurtosis", stat.ExKurtosis(vals, nil))
		put(feats, name+"_peak_count", float64(peakCount(vals, mean, std)))
		if mags := spectrum(vals); len(mags) > 0 {
			put(feats, name+"_fft_max", floats.Max(mags))
			put(feats, name+"_dominant_freq", float64(floats.MaxIdx(mags)))
			put(feats, name+"_fft_mean", stat.Mean(mags, nil))
		}
	}

	// World-frame acceleration: strip wrist orientation when both streams
	// are present. Each acceleration sample is rotated by the
	// nearest-in-time orientation sample.
	if len(accelR) > 0 && len(orient) > 0 {
		var world [3][]float64
		for _, r := range accelR {
			w, err := sensor.Rotate(r.Vec, nearestOrientation(orient, r.Timestamp))
			if err != nil {
				continue
			}
			world[0] = append(world[0], w.X)
			world[1] = append(world[1], w.Y)
			world[2] = append(world[2], w.Z)
		}
		for i, axis := range axes {
			vals := world[i]
			if len(vals) == 0 {
				continue
			}
			name := "world_accel_" + axis
			mean, std := stat.MeanStdDev(vals, nil)
			put(feats, name+"_mean", mean)
			put(feats, name+"_std", std)
			put(feats, name+"_max", floats.Max(vals))
			put(feats, name+"_min", floats.Min(vals))
			put(feats, name+"_range", floats.Max(vals)-floats.Min(vals))
			put(feats, name+"_skew", stat.Skew(vals, nil))
			put(feats, name+"_kurtosis", stat.ExKurtosis(vals, nil))
		}
	}

	// Gyroscope: rotation energy matters more than direction, hence
	// max_abs and rms instead of the raw extrema.
	for i, axis := range axes {
		vals := gyro[i]
		if len(vals) == 0 {
			continue
		}
		name := "gyro_" + axis
		mean, std := stat.MeanStdDev(vals, nil)
		put(feats, name+"_mean", mean)
		put(feats, name+"_std", std)
		put(feats, name+"_max_abs", maxAbs(vals))
		put(feats, name+"_range", floats.Max(vals)-floats.Min(vals))
		put(feats, name+"_skew", stat.Skew(vals, nil))
		put(feats, name+"_kurtosis", stat.ExKurtosis(vals, nil))
		put(feats, name+"_rms", rms(vals))
		if mags := spectrum(vals); len(mags) > 0 {
			put(feats, name+"_fft_max", floats.Max(mags))
		}
	}

	// Orientation quaternion components: coarse stats only.
	for i, axis := range [4]string{"x", "y", "z", "w"} {
		vals := rot[i]
		if len(vals) == 0 {
			continue
		}
		name := "rot_" + axis
		mean, std := stat.MeanStdDev(vals, nil)
		put(feats, name+"_mean", mean)
		put(feats, name+"_std", std)
		put(feats, name+"_range", floats.Max(vals)-floats.Min(vals))
	}

	// Cross-axis magnitudes.
	if len(accelR) > 0 {
		mags := make([]float64, len(accelR))
		for i, r := range accelR {
			mags[i] = r.Vec.Norm()
		}
		mean, std := stat.MeanStdDev(mags, nil)
		put(feats, "accel_magnitude_mean", mean)
		put(feats, "accel_magnitude_max", floats.Max(mags))
		put(feats, "accel_magnitude_std", std)
	}
	if len(gyroVec) > 0 {
		mags := make([]float64, len(gyroVec))
		for i, v := range gyroVec {
			mags[i] = v.Norm()
		}
		mean, std := stat.MeanStdDev(mags, nil)
		put(feats, "gyro_magnitude_mean", mean)
		put(feats, "gyro_magnitude_max", floats.Max(mags))
		put(feats, "gyro_magnitude_std", std)
	}

	return feats
}

// put stores a feature value, flattening NaN and ±Inf to zero.
func put(m map[string]float64, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	m[name] = v
}

// median returns the middle element (or the mean of the middle pair),
// matching the convention the classifiers were trained with. gonum's
// Quantile kinds interpolate the empirical CDF instead, which shifts
// odd-length medians off the middle sample.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// peakCount counts samples above mean + 2σ, the spike heuristic the
// classifiers were trained with.
func peakCount(vals []float64, mean, std float64) int {
	threshold := mean + 2*std
	n := 0
	for _, v := range vals {
		if v > threshold {
			n++
		}
	}
	return n
}

// spectrum returns the positive-frequency magnitude spectrum, or nil when
// the series is too short for a meaningful transform.
func spectrum(vals []float64) []float64 {
	if len(vals) < minSpectrumSamples {
		return nil
	}
	fft := fourier.NewFFT(len(vals))
	coeffs := fft.Coefficients(nil, vals)
	half := len(vals) / 2
	mags := make([]float64, half)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(coeffs[i])
	}
	return mags
}

func maxAbs(vals []float64) float64 {
	m := 0.0
	for _, v := range vals {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func rms(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(vals)))
}

// nearestOrientation picks the orientation sample closest in time to t.
// The slice is in arrival order, which the collector guarantees is time
// order.
func nearestOrientation(orient []sensor.Reading, t time.Time) sensor.Quat {
	i := sort.Search(len(orient), func(i int) bool {
		return !orient[i].Timestamp.Before(t)
	})
	if i == 0 {
		return orient[0].Quat
	}
	if i == len(orient) {
		return orient[len(orient)-1].Quat
	}
	if t.Sub(orient[i-1].Timestamp) <= orient[i].Timestamp.Sub(t) {
		return orient[i-1].Quat
	}
	return orient[i].Quat
}
