package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Relay is a formrelay instance found on the local network
type Relay struct {
	// Instance is the advertised instance name (e.g., "formrelay")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio.local.")
	Hostname string

	// IP is the address the relay answered from, IPv4 preferred
	IP string

	// Port is the relay's HTTP port
	Port int

	// Metadata contains the TXT record data
	// Fields set by Advertiser: "app", "version", "forms", "path"
	Metadata map[string]string

	// DiscoveredAt is when the relay was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the relay
func (r *Relay) String() string {
	return fmt.Sprintf("formrelay %s (%s) at %s:%d", r.Instance, r.Hostname, r.IP, r.Port)
}

// BaseURL returns the HTTP base URL for the relay
func (r *Relay) BaseURL() string {
	return "http://" + net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Relay) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
