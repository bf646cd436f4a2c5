// Package collector ingests the watch's UDP sensor stream and fans every
// normalized reading out to all subscribed consumers.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-wristpad/internal/log"
	"github.com/teslashibe/go-wristpad/pkg/sensor"
)

// readPoll bounds how long a receive can block, so the loop can service
// cancellation and the idle watchdog between packets.
const readPoll = 100 * time.Millisecond

// maxPacketSize matches the watch app's largest datagram with headroom.
const maxPacketSize = 2048

// Subscription is one consumer's private view of the stream. When its
// buffer is full the newest reading is dropped for this subscriber only;
// the collector and other subscribers are never blocked.
type Subscription struct {
	name    string
	ch      chan sensor.Reading
	dropped atomic.Uint64
}

// Readings returns the channel readings are delivered on.
func (s *Subscription) Readings() <-chan sensor.Reading {
	return s.ch
}

// Dropped returns how many readings were discarded because this
// subscriber's buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Name returns the subscriber name used in logs and status output.
func (s *Subscription) Name() string {
	return s.name
}

// Status is a point-in-time snapshot of collector health for the
// dashboard.
type Status struct {
	Packets    uint64    `json:"packets"`
	Malformed  uint64    `json:"malformed"`
	Unknown    uint64    `json:"unknown"`
	Dropped    uint64    `json:"dropped"`
	FeedIdle   bool      `json:"feed_idle"`
	LastPacket time.Time `json:"last_packet"`
}

// Collector owns the UDP socket and the fan-out. Binding happens in New
// so a taken port fails startup instead of surfacing mid-run.
type Collector struct {
	conn        *net.UDPConn
	idleTimeout time.Duration
	logger      *slog.Logger

	mu         sync.RWMutex
	subs       []*Subscription
	idle       bool
	lastPacket time.Time

	packets   atomic.Uint64
	malformed atomic.Uint64
	unknown   atomic.Uint64
}

// New binds the sensor socket. addr follows net.ListenUDP conventions
// (":5005", "0.0.0.0:5005"); port 0 picks an ephemeral port.
func New(addr string, idleTimeout time.Duration) (*Collector, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind sensor socket %q: %w", addr, err)
	}
	return &Collector{
		conn:        conn,
		idleTimeout: idleTimeout,
		logger:      log.Component("collector"),
	}, nil
}

// Addr returns the bound socket address.
func (c *Collector) Addr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// Subscribe registers a consumer before Run is called. Each subscriber
// gets an independent buffered queue of the given capacity.
func (c *Collector) Subscribe(name string, buffer int) *Subscription {
	sub := &Subscription{
		name: name,
		ch:   make(chan sensor.Reading, buffer),
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Run receives until the context is cancelled. Malformed and unknown
// packets are counted and skipped; a quiet feed flips the idle status
// without stopping the loop. Only unexpected socket failures end the run.
func (c *Collector) Run(ctx context.Context) error {
	defer c.conn.Close()

	c.logger.Info("listening for sensor packets", "addr", c.Addr().String())
	c.touch(time.Now())

	buf := make([]byte, maxPacketSize)
	for {
		if ctx.Err() != nil {
			c.logger.Info("collector stopped")
			return nil
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				c.checkIdle(time.Now())
				continue
			}
			if ctx.Err() != nil {
				c.logger.Info("collector stopped")
				return nil
			}
			return fmt.Errorf("udp receive: %w", err)
		}

		now := time.Now()
		reading, err := sensor.Decode(buf[:n], now)
		if err != nil {
			if errors.Is(err, sensor.ErrUnknownSensor) {
				c.unknown.Add(1)
			} else {
				c.malformed.Add(1)
			}
			c.logger.Debug("dropped packet", "err", err)
			continue
		}

		c.packets.Add(1)
		c.touch(now)
		c.publish(reading)
	}
}

// publish delivers one reading to every subscriber, dropping the newest
// reading for any subscriber whose buffer is full.
func (c *Collector) publish(r sensor.Reading) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subs {
		select {
		case sub.ch <- r:
		default:
			sub.dropped.Add(1)
		}
	}
}

// touch records packet arrival and clears the idle flag if set.
func (c *Collector) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPacket = now
	if c.idle {
		c.idle = false
		c.logger.Info("sensor feed resumed")
	}
}

// checkIdle flips the idle flag once the feed has been quiet for the
// configured timeout. Transient dropout is an expected condition, so this
// is a status signal, never an error.
func (c *Collector) checkIdle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.idle && now.Sub(c.lastPacket) > c.idleTimeout {
		c.idle = true
		c.logger.Warn("sensor feed idle", "timeout", c.idleTimeout)
	}
}

// Status snapshots collector health.
func (c *Collector) Status() Status {
	c.mu.RLock()
	idle := c.idle
	last := c.lastPacket
	var dropped uint64
	for _, sub := range c.subs {
		dropped += sub.Dropped()
	}
	c.mu.RUnlock()

	return Status{
		Packets:    c.packets.Load(),
		Malformed:  c.malformed.Load(),
		Unknown:    c.unknown.Load(),
		Dropped:    dropped,
		FeedIdle:   idle,
		LastPacket: last,
	}
}
