package discovery

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/logging"
)

// Announcement describes the relay being advertised
type Announcement struct {
	Instance string // instance name, e.g. "formrelay"
	Port     int
	Version  string
	Forms    int    // number of registered forms
	Path     string // path of the rendered page, usually "/"
}

// TXT returns the TXT records for the announcement
func (a Announcement) TXT() []string {
	path := a.Path
	if path == "" {
		path = "/"
	}
	return []string{
		"app=" + AppTag,
		"version=" + a.Version,
		"forms=" + strconv.Itoa(a.Forms),
		"path=" + path,
	}
}

// Advertiser publishes a relay over mDNS until stopped.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Start registers the service on all interfaces.
func (a *Advertiser) Start(ann Announcement) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("advertiser already running")
	}
	if ann.Port < 1 || ann.Port > 65535 {
		return fmt.Errorf("invalid port for mDNS advertisement: %d", ann.Port)
	}

	server, err := zeroconf.Register(ann.Instance, ServiceType, ServiceDomain, ann.Port, ann.TXT(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server

	logging.Info("Advertising relay over mDNS",
		zap.String("instance", ann.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ann.Port),
	)
	return nil
}

// Stop withdraws the advertisement. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	logging.Debug("Stopped mDNS advertisement")
}
