package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/missionsim/internal/core/eligibility"
	"github.com/zeusync/missionsim/internal/core/events/bus"
	"github.com/zeusync/missionsim/internal/core/mission"
	"github.com/zeusync/missionsim/internal/core/observability/log"
)

// SnapshotSource is the part of a running scenario the server reads.
type SnapshotSource interface {
	Snapshot() mission.Snapshot
	Config() mission.Config
}

// Server exposes a running scenario to dashboards over HTTP and websocket.
type Server struct {
	source  SnapshotSource
	catalog *eligibility.Catalog
	bus     bus.EventBus
	sub     bus.Subscription
	events  *eventCounter

	// mu guards httpServer, listener and stopChan across Start and Stop
	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	group      errgroup.Group

	// Client management
	clients     sync.Map // map[string]*ClientSession
	clientCount int64    // atomic
	dropped     uint64   // atomic, frames dropped on full client buffers

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	// Network settings
	ListenAddr string
	MaxClients int

	// Websocket feed
	ClientBufferSize int
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MaxRequestSize   int64

	// Health monitoring
	HealthCheckInterval time.Duration
	ClientTimeout       time.Duration

	// Logging
	LogLevel log.Level
	LogFile  string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxClients:          256,
		ClientBufferSize:    64,
		WriteTimeout:        5 * time.Second,
		PingInterval:        15 * time.Second,
		MaxRequestSize:      1024 * 1024, // 1MB
		HealthCheckInterval: 30 * time.Second,
		ClientTimeout:       time.Minute,
		LogLevel:            log.LevelInfo,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	case c.MaxClients <= 0:
		return fmt.Errorf("%w: max clients must be positive", ErrInvalidConfig)
	case c.ClientBufferSize <= 0:
		return fmt.Errorf("%w: client buffer size must be positive", ErrInvalidConfig)
	case c.WriteTimeout <= 0 || c.PingInterval <= 0:
		return fmt.Errorf("%w: write timeout and ping interval must be positive", ErrInvalidConfig)
	case c.HealthCheckInterval <= 0 || c.ClientTimeout <= 0:
		return fmt.Errorf("%w: health check interval and client timeout must be positive", ErrInvalidConfig)
	case c.ClientTimeout <= c.PingInterval:
		return fmt.Errorf("%w: client timeout must exceed the ping interval", ErrInvalidConfig)
	case c.MaxRequestSize <= 0:
		return fmt.Errorf("%w: max request size must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewServer creates a server for source and subscribes it to snapshot events
// on eventBus. catalog may be nil, in which case the eligibility endpoints
// answer 503.
func NewServer(config Config, source SnapshotSource, catalog *eligibility.Catalog, eventBus bus.EventBus, logger log.Log) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		source:  source,
		catalog: catalog,
		bus:     eventBus,
		config:  config,
		logger:  logger.With(log.String("component", "server")),
	}
	s.events = newEventCounter(s.logger)

	sub, err := eventBus.Subscribe(mission.EventSnapshot, s.onSnapshot)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	eventBus.AddObserver(s.events)

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients),
		log.Bool("catalog", catalog != nil))

	return s, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
			return err
		}
		return nil
	})

	s.startWorkers(stop)

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down, disconnects every feed client and waits
// for the serving goroutine.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	s.mu.Lock()
	httpServer := s.httpServer
	close(s.stopChan)
	s.mu.Unlock()

	err := httpServer.Shutdown(ctx)

	// hijacked websocket connections are not closed by Shutdown
	s.clients.Range(func(_, value any) bool {
		value.(*ClientSession).close()
		return true
	})

	s.stopWorkers()

	if serveErr := s.group.Wait(); err == nil {
		err = serveErr
	}

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if needed and drops the bus subscription.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		_ = s.Stop(ctx)
		cancel()
	} else {
		s.clients.Range(func(_, value any) bool {
			value.(*ClientSession).close()
			return true
		})
	}
	_ = s.bus.Unsubscribe(s.sub)
	s.bus.RemoveObserver(s.events)

	s.logger.Info("Server closed")
	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// within the write timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers(stop <-chan struct{}) {
	s.workerGroup.Add(1)

	// Health monitor
	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor(stop)
	}()
}

// stopWorkers stops background worker goroutines
func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}

// healthMonitor disconnects feed clients that stopped answering pings
func (s *Server) healthMonitor(stop <-chan struct{}) {
	s.logger.Debug("Health monitor started")

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks()
		case <-stop:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

func (s *Server) performHealthChecks() {
	cutoff := time.Now().Add(-s.config.ClientTimeout).Unix()

	var stale []*ClientSession
	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		if atomic.LoadInt64(&session.LastSeen) < cutoff {
			stale = append(stale, session)
		}
		return true
	})

	for _, session := range stale {
		s.logger.Info("Disconnecting inactive client", log.String("client_id", session.ID))
		session.close()
	}

	if len(stale) > 0 {
		s.logger.Info("Health check completed",
			log.Int("disconnected_clients", len(stale)),
			log.Int64("active_clients", atomic.LoadInt64(&s.clientCount)))
	}
}
