// Simwatch replays synthetic watch sensor traffic against a wristpad
// daemon. It fakes the packet mix a real watch produces for one gesture
// at a time, enough to exercise the whole pipeline without strapping on
// hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// waveform produces device-frame samples for elapsed time t and packet
// index i.
type waveform func(t float64, i int) (accel, gyro sensor.Vec3)

func main() {
	target := flag.String("target", "localhost:5005", "Daemon sensor address")
	rate := flag.Int("rate", 50, "Sample ticks per second")
	gesture := flag.String("gesture", "walk", "Waveform: idle, walk, jump or punch")
	duration := flag.Duration("duration", 0, "How long to send; 0 runs until interrupted")
	flag.Parse()

	if *rate <= 0 {
		fmt.Fprintln(os.Stderr, "simwatch: rate must be positive")
		os.Exit(1)
	}
	wave, err := pickWaveform(*gesture, *rate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simwatch: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simwatch: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	fmt.Printf("sending %s waveform to %s at %d Hz (Ctrl+C to stop)\n", *gesture, *target, *rate)
	if err := run(ctx, conn, wave, *rate); err != nil {
		fmt.Fprintf(os.Stderr, "simwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conn net.Conn, wave waveform, rate int) error {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := time.Now()
	sent := 0
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			fmt.Printf("sent %d packets in %s\n", sent, time.Since(start).Round(time.Millisecond))
			return nil
		case <-ticker.C:
		}

		accel, gyro := wave(time.Since(start).Seconds(), i)
		for _, pkt := range encodeTick(accel, gyro) {
			if _, err := conn.Write(pkt); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			sent++
		}
	}
}

// encodeTick builds the three-packet burst a real watch emits per
// sample tick: acceleration, gyroscope and a flat-wrist orientation.
func encodeTick(accel, gyro sensor.Vec3) [][]byte {
	a, _ := sensor.EncodeVec(sensor.Acceleration, accel)
	g, _ := sensor.EncodeVec(sensor.AngularVelocity, gyro)
	o, _ := sensor.EncodeOrientation(sensor.Identity())
	return [][]byte{a, g, o}
}

func pickWaveform(gesture string, rate int) (waveform, error) {
	switch gesture {
	case "idle":
		return idleWave, nil
	case "walk":
		return walkWave, nil
	case "jump":
		return spikeWave(rate, sensor.Vec3{Z: 20}), nil
	case "punch":
		return spikeWave(rate, sensor.Vec3{X: 14}), nil
	default:
		return nil, fmt.Errorf("unknown gesture %q (want idle, walk, jump or punch)", gesture)
	}
}

// idleWave is low-level sensor noise around rest.
func idleWave(t float64, i int) (sensor.Vec3, sensor.Vec3) {
	return jitter(0.3), jitter(0.05)
}

// walkWave swings the arm at a brisk step cadence.
func walkWave(t float64, i int) (sensor.Vec3, sensor.Vec3) {
	const cadence = 1.8 // steps per second
	phase := 2 * math.Pi * cadence * t
	accel := sensor.Vec3{
		X: 2.5*math.Sin(phase) + rand.NormFloat64()*0.3,
		Y: 1.2*math.Cos(phase) + rand.NormFloat64()*0.3,
		Z: rand.NormFloat64() * 0.4,
	}
	gyro := sensor.Vec3{
		X: 0.6 * math.Sin(phase),
		Y: rand.NormFloat64() * 0.1,
		Z: 0.4 * math.Cos(phase),
	}
	return accel, gyro
}

// spikeWave rests at idle and fires a five-packet burst of the given
// acceleration every two seconds, the shape the reflex layer triggers
// on.
func spikeWave(rate int, peak sensor.Vec3) waveform {
	period := 2 * rate
	return func(t float64, i int) (sensor.Vec3, sensor.Vec3) {
		if i%period < 5 {
			return peak, jitter(0.05)
		}
		return jitter(0.3), jitter(0.05)
	}
}

// jitter is centred gaussian noise with the given spread on each axis.
func jitter(sigma float64) sensor.Vec3 {
	return sensor.Vec3{
		X: rand.NormFloat64() * sigma,
		Y: rand.NormFloat64() * sigma,
		Z: rand.NormFloat64() * sigma,
	}
}
