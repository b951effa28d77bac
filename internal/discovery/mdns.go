package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type trellis advertises.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second

	// TXT record keys.
	txtServer = "server"
	txtTLS    = "tls"
	txtPath   = "path"
)

// Scanner browses the local network for advertised trellis servers.
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every trellis instance that answers before the timeout or
// ctx ends. Other _http._tcp services are ignored.
func (s *Scanner) Scan(ctx context.Context) ([]*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu        sync.Mutex
		instances []*Instance
		seen      = make(map[string]bool)
	)
	err := s.browse(ctx, func(inst *Instance) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[inst.Name] {
			seen[inst.Name] = true
			instances = append(instances, inst)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Instance(nil), instances...), nil
}

// WaitFor returns the instance advertised under name, or an error if it does
// not appear before the timeout.
func (s *Scanner) WaitFor(ctx context.Context, name string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Instance, 1)
	err := s.browse(ctx, func(inst *Instance) bool {
		if inst.Name != name {
			return true
		}
		select {
		case found <- inst:
		default:
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case inst := <-found:
		return inst, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("instance %q not found within %s", name, s.Timeout)
	}
}

// browse feeds parsed instances to fn until ctx ends or fn returns false.
func (s *Scanner) browse(ctx context.Context, fn func(*Instance) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if inst := parseServiceEntry(entry, time.Now()); inst != nil && !fn(inst) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to an Instance.
// Returns nil if the entry was not advertised by trellis.
func parseServiceEntry(entry *zeroconf.ServiceEntry, now time.Time) *Instance {
	metadata := parseTXT(entry.Text)
	serverID, ok := metadata[txtServer]
	if !ok {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	return &Instance{
		Name:         entry.Instance,
		ServerID:     serverID,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		TLS:          metadata[txtTLS] == "1",
		Metadata:     metadata,
		DiscoveredAt: now,
	}
}

// parseTXT splits "key=value" records. A key without "=" maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}
