package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/discovery"
	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/metrics"
	"github.com/muurk/formrelay/internal/page"
	"github.com/muurk/formrelay/internal/submit"
	"github.com/muurk/formrelay/internal/version"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for open requests
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	Host        string
	Port        int
	TLSCert     string // serve HTTPS when both TLSCert and TLSKey are set
	TLSKey      string
	Advertise   bool   // announce the relay over mDNS
	ServiceName string // mDNS instance name

	ShutdownTimeout time.Duration
}

// Server serves one document and relays its forms
type Server struct {
	config    *Config
	doc       *page.Document
	ctrl      *submit.Controller
	hub       *Hub
	registry  *prometheus.Registry
	tlsConfig *tls.Config
	handler   http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	advertiser *discovery.Advertiser
}

// New creates a server for doc. The controller must already be attached to
// doc; the server registers its metrics and websocket hub as observers.
func New(config *Config, doc *page.Document, ctrl *submit.Controller) (*Server, error) {
	var tlsConfig *tls.Config
	if config.TLSCert != "" && config.TLSKey != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.TLSCert, config.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		config:    config,
		doc:       doc,
		ctrl:      ctrl,
		hub:       NewHub(),
		registry:  registry,
		tlsConfig: tlsConfig,
	}
	ctrl.Observe(metrics.New(metrics.WithRegistry(registry)))
	ctrl.Observe(s.hub)
	s.handler = s.routes()

	return s, nil
}

// Handler returns the relay's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until ctx is canceled, SIGINT/SIGTERM arrives or the
// listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	logging.Info("Starting form relay",
		zap.String("addr", addr),
		zap.Int("forms", len(s.ctrl.Registrations())),
		zap.Any("tls_info", TLSInfo(s.tlsConfig)),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	if s.config.Advertise {
		s.advertise(listener.Addr())
	}

	logging.Info("Server listening for connections", zap.String("addr", listener.Addr().String()))

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) advertise(addr net.Addr) {
	port := s.config.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	name := s.config.ServiceName
	if name == "" {
		name = "formrelay"
	}

	adv := &discovery.Advertiser{}
	err := adv.Start(discovery.Announcement{
		Instance: name,
		Port:     port,
		Version:  version.Version,
		Forms:    len(s.ctrl.Registrations()),
	})
	if err != nil {
		// The relay still works without mDNS.
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.advertiser = adv
	s.mu.Unlock()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	adv := s.advertiser
	httpServer := s.httpServer
	s.advertiser = nil
	s.mu.Unlock()

	if adv != nil {
		adv.Stop()
	}

	// Hijacked websocket connections are not tracked by http.Server.
	s.hub.Close()
	s.ctrl.Close()

	var err error
	if httpServer != nil {
		if err = httpServer.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
			_ = httpServer.Close()
		} else {
			logging.Info("All connections closed gracefully")
		}
	}

	logging.Sync()
	return err
}
