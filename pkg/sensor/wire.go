package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedPacket is returned when a wire payload is not valid JSON
	// or is missing its sensor tag.
	ErrMalformedPacket = errors.New("malformed sensor packet")

	// ErrUnknownSensor is returned for sensor kinds the pipeline does not
	// consume (e.g. step_detector). Callers drop these silently.
	ErrUnknownSensor = errors.New("unknown sensor kind")
)

// Packet is the raw JSON payload the watch sends, one reading per datagram.
// The values record is untrusted: missing axes decode to 0 and a missing
// quaternion w decodes to 1.
type Packet struct {
	Sensor string     `json:"sensor"`
	Values wireValues `json:"values"`
}

type wireValues struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z float64  `json:"z"`
	W *float64 `json:"w,omitempty"`
}

// Decode parses one wire packet into a Reading stamped with the given
// receive time.
func Decode(data []byte, now time.Time) (Reading, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if p.Sensor == "" {
		return Reading{}, fmt.Errorf("%w: missing sensor tag", ErrMalformedPacket)
	}

	switch p.Sensor {
	case Acceleration.String():
		return Reading{
			Timestamp: now,
			Kind:      Acceleration,
			Vec:       Vec3{X: p.Values.X, Y: p.Values.Y, Z: p.Values.Z},
		}, nil
	case AngularVelocity.String():
		return Reading{
			Timestamp: now,
			Kind:      AngularVelocity,
			Vec:       Vec3{X: p.Values.X, Y: p.Values.Y, Z: p.Values.Z},
		}, nil
	case Orientation.String():
		w := 1.0
		if p.Values.W != nil {
			w = *p.Values.W
		}
		return Reading{
			Timestamp: now,
			Kind:      Orientation,
			Quat:      Quat{X: p.Values.X, Y: p.Values.Y, Z: p.Values.Z, W: w},
		}, nil
	default:
		return Reading{}, fmt.Errorf("%w: %q", ErrUnknownSensor, p.Sensor)
	}
}

// EncodeVec builds the wire form of a 3-axis reading. Used by the
// synthetic sender and by tests.
func EncodeVec(kind Kind, v Vec3) ([]byte, error) {
	if kind == Orientation {
		return nil, fmt.Errorf("%w: orientation requires a quaternion", ErrMalformedPacket)
	}
	return json.Marshal(Packet{
		Sensor: kind.String(),
		Values: wireValues{X: v.X, Y: v.Y, Z: v.Z},
	})
}

// EncodeOrientation builds the wire form of an orientation reading.
func EncodeOrientation(q Quat) ([]byte, error) {
	w := q.W
	return json.Marshal(Packet{
		Sensor: Orientation.String(),
		Values: wireValues{X: q.X, Y: q.Y, Z: q.Z, W: &w},
	})
}
