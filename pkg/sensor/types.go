// Package sensor defines the normalized sample types flowing through the
// gesture pipeline and the wire protocol spoken by the watch app.
package sensor

import (
	"math"
	"time"
)

// Kind identifies which physical sensor produced a reading.
type Kind uint8

const (
	// Acceleration is linear acceleration with gravity removed (m/s²).
	Acceleration Kind = iota
	// AngularVelocity is the gyroscope rate (rad/s).
	AngularVelocity
	// Orientation is the rotation vector as a unit quaternion.
	Orientation
)

// String returns the wire name of the sensor kind.
func (k Kind) String() string {
	switch k {
	case Acceleration:
		return "linear_acceleration"
	case AngularVelocity:
		return "gyroscope"
	case Orientation:
		return "rotation_vector"
	default:
		return "unknown"
	}
}

// Vec3 is a 3-axis sample in the device frame.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean magnitude of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Quat is an orientation quaternion (x, y, z vector part, w scalar part).
type Quat struct {
	X, Y, Z, W float64
}

// IsFinite reports whether all components are finite numbers.
func (q Quat) IsFinite() bool {
	for _, c := range [4]float64{q.X, q.Y, q.Z, q.W} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Identity returns the no-rotation quaternion.
func Identity() Quat {
	return Quat{W: 1}
}

// Reading is one normalized sensor sample. Vec carries the axes for
// Acceleration and AngularVelocity; Quat carries the Orientation
// quaternion. Immutable once constructed.
type Reading struct {
	Timestamp time.Time
	Kind      Kind
	Vec       Vec3
	Quat      Quat
}
