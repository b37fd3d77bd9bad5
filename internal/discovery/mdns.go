package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type probe bridges advertise
	ServiceType = "_rttap-bridge._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for bridge discovery
	DefaultScanTimeout = 5 * time.Second
)

// Bridge is one discovered probe bridge on the local network.
type Bridge struct {
	// Name is the advertised service instance name
	Name string
	// Host is the bridge's IPv4 address
	Host string
	// Port is the bridge's HTTP/websocket port
	Port int
}

// URL returns the websocket endpoint for this bridge.
func (b *Bridge) URL() string {
	return fmt.Sprintf("ws://%s:%d/debug", b.Host, b.Port)
}

// Scanner handles mDNS bridge discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForBridges discovers all probe bridges on the local network.
func (s *Scanner) ScanForBridges(ctx context.Context) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	bridges := make([]*Bridge, 0)
	done := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			if bridge := parseServiceEntry(entry); bridge != nil {
				bridges = append(bridges, bridge)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for the browse to finish and the entry channel to drain.
	<-ctx.Done()
	<-done

	return bridges, nil
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil for entries without a usable IPv4 address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if len(entry.AddrIPv4) == 0 {
		return nil
	}
	return &Bridge{
		Name: entry.Instance,
		Host: entry.AddrIPv4[0].String(),
		Port: entry.Port,
	}
}

// Advertise registers a probe bridge instance on the local network until
// ctx is cancelled. Used by the bundled bridge daemon.
func Advertise(ctx context.Context, instance string, port int) error {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port,
		[]string{"proto=rttap/1"}, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}
