// Package transport selects a concrete canbus.Port for the CAN Frame
// Port (component A) based on daemon configuration: a real SocketCAN
// interface, the bundled TCP-framed simulator transport, or an
// in-memory loopback for tests.
package transport

import (
	"fmt"

	"evtelemetry/internal/canbus"
)

// Config holds CAN port selection configuration.
type Config struct {
	Type     string // "socketcan", "tcp-client", "tcp-server", "loopback"
	Address  string // interface name (socketcan) or host:port (tcp)
	BaudRate int
	Debug    bool
}

// NewPort builds (but does not Start) a canbus.Port for cfg.
func NewPort(cfg *Config) (canbus.Port, error) {
	switch cfg.Type {
	case "socketcan":
		return canbus.NewSocketCANPort(cfg.Address), nil
	case "tcp-client":
		return canbus.NewTCPClientPort(cfg.Address), nil
	case "tcp-server":
		return canbus.NewTCPServerPort(cfg.Address), nil
	case "loopback":
		a, _ := canbus.NewLoopbackPair()
		return a, nil
	default:
		return nil, fmt.Errorf("transport: unsupported type %q", cfg.Type)
	}
}

// Baud resolves cfg's configured baud rate, defaulting to 500k.
func (c *Config) Baud() int {
	switch c.BaudRate {
	case canbus.Baud250k, canbus.Baud1M:
		return c.BaudRate
	default:
		return canbus.Baud500k
	}
}
