package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance is a trellis server found on the local network.
type Instance struct {
	// Name is the advertised mDNS instance name (e.g. "trellis")
	Name string

	// ServerID is the server's Server header value, from the TXT record
	ServerID string

	// Hostname is the mDNS hostname (e.g. "build-box.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	Port int

	// TLS reports whether the listener expects HTTPS
	TLS bool

	// Metadata holds every TXT record, including the ones parsed above
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable form of the instance.
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s) at %s", i.Name, i.ServerID, net.JoinHostPort(i.IP, strconv.Itoa(i.Port)))
}

// BaseURL returns the URL at which the instance serves.
func (i *Instance) BaseURL() string {
	scheme := "http"
	if i.TLS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
