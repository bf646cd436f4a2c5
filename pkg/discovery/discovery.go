// Package discovery advertises the sensor listener over mDNS so the
// watch app can find the desktop without anyone typing an IP address.
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/teslashibe/go-wristpad/internal/log"
)

const (
	// ServiceType is what the watch app browses for.
	ServiceType   = "_wristpad._udp"
	ServiceDomain = "local."

	version = "1.0"
)

// Service registers the listener with mDNS and keeps the registration
// alive until Stop.
type Service struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
	port     int
	ip       string
	logger   *slog.Logger
}

// New prepares an advertisement for the UDP sensor port.
func New(port int) *Service {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "wristpad"
	}
	return &Service{
		instance: fmt.Sprintf("%s-wristpad", hostname),
		port:     port,
		logger:   log.Component("discovery"),
	}
}

// Start registers the service. Calling Start on a running service is a
// no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	ip, err := LocalIP()
	if err != nil {
		return fmt.Errorf("detecting local address: %w", err)
	}
	server, err := zeroconf.Register(
		s.instance,
		ServiceType,
		ServiceDomain,
		s.port,
		[]string{"version=" + version, "ip=" + ip},
		nil,
	)
	if err != nil {
		return fmt.Errorf("registering mDNS service: %w", err)
	}
	s.server = server
	s.ip = ip
	s.logger.Info("listener advertised",
		"instance", s.instance,
		"service", ServiceType,
		"ip", ip,
		"port", s.port)
	return nil
}

// Stop withdraws the advertisement.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return
	}
	s.server.Shutdown()
	s.server = nil
	s.logger.Info("advertisement withdrawn")
}

// IP returns the address the service was advertised with, or empty
// before Start.
func (s *Service) IP() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ip
}

// Instance returns the mDNS instance name.
func (s *Service) Instance() string {
	return s.instance
}

// LocalIP returns the machine's first non-loopback IPv4 address. The
// watch app needs a concrete address to stream to; binding 0.0.0.0
// alone tells it nothing.
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
