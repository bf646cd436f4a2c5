package sensor

import "errors"

// ErrInvalidOrientation is returned when a rotation quaternion contains
// NaN or infinite components.
var ErrInvalidOrientation = errors.New("orientation quaternion is not finite")

// cross returns the cross product a × b.
func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// scale returns v scaled by s.
func scale(v Vec3, s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// add returns the component-wise sum of the given vectors.
func add(vs ...Vec3) Vec3 {
	var out Vec3
	for _, v := range vs {
		out.X += v.X
		out.Y += v.Y
		out.Z += v.Z
	}
	return out
}

// Rotate rotates a device-local vector into the world frame using the
// orientation quaternion. It uses the expanded form of v' = q v q⁻¹ for a
// pure vector:
//
//	a = 2 * cross(q_v, v)
//	b = q_w * a
//	c = cross(q_v, a)
//	v' = v + b + c
//
// which avoids two full quaternion multiplications. Wrist orientation is
// removed from acceleration this way so that a jump looks the same no
// matter how the watch is worn.
func Rotate(v Vec3, q Quat) (Vec3, error) {
	if !q.IsFinite() {
		return Vec3{}, ErrInvalidOrientation
	}
	qv := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	a := scale(cross(qv, v), 2)
	b := scale(a, q.W)
	c := cross(qv, a)
	return add(v, b, c), nil
}
