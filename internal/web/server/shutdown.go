package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// GracefulShutdown runs a server until a signal arrives or its context ends,
// then drains it and runs the registered cleanup hooks
type GracefulShutdown struct {
	server        *Server
	shutdownHooks []ShutdownHook
	timeout       time.Duration
	signals       []os.Signal
	logger        Logger
	mu            sync.Mutex
	shutdownOnce  sync.Once
	shutdownChan  chan struct{}
	shutdownError error
}

// ShutdownHook is a function called during graceful shutdown
type ShutdownHook func(ctx context.Context) error

// Logger is a simple logging interface
type Logger interface {
	Printf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// ShutdownConfig holds graceful shutdown configuration
type ShutdownConfig struct {
	// Timeout is the maximum time to wait for shutdown
	Timeout time.Duration

	// Signals to listen for (default: SIGINT, SIGTERM)
	Signals []os.Signal

	// Logger for shutdown messages
	Logger Logger
}

// DefaultShutdownConfig returns default shutdown configuration
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// NewGracefulShutdown creates a new graceful shutdown handler
func NewGracefulShutdown(server *Server, config *ShutdownConfig) *GracefulShutdown {
	if config == nil {
		config = DefaultShutdownConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	signals := config.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GracefulShutdown{
		server:       server,
		timeout:      timeout,
		signals:      signals,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// RegisterHook registers a shutdown hook. Hooks run in registration order
// after the server stopped accepting requests.
func (gs *GracefulShutdown) RegisterHook(hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.shutdownHooks = append(gs.shutdownHooks, hook)
}

// Run serves until ctx is done or one of the configured signals arrives, and
// then shuts down. It returns the serve error, if any, combined with the
// shutdown errors.
func (gs *GracefulShutdown) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, gs.signals...)
	defer stop()

	if err := gs.server.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gs.logger.Printf("Starting server on %s", gs.server.Addr())
		if err := gs.server.Serve(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		gs.logger.Printf("Shutdown requested, shutting down gracefully...")
		return gs.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops the server and runs the hooks. Only the first call does the
// work; every call returns its result.
func (gs *GracefulShutdown) Shutdown() error {
	gs.shutdownOnce.Do(func() {
		gs.logger.Printf("Initiating graceful shutdown (timeout: %v)", gs.timeout)

		ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
		defer cancel()

		var err error
		if serr := gs.server.Shutdown(ctx); serr != nil {
			err = multierr.Append(err, fmt.Errorf("server shutdown: %w", serr))
		}

		gs.mu.Lock()
		hooks := append([]ShutdownHook(nil), gs.shutdownHooks...)
		gs.mu.Unlock()

		for i, hook := range hooks {
			if herr := hook(ctx); herr != nil {
				gs.logger.Printf("Shutdown hook %d failed: %v", i, herr)
				err = multierr.Append(err, fmt.Errorf("shutdown hook %d: %w", i, herr))
			}
		}

		if err == nil {
			gs.logger.Printf("Server shutdown completed successfully")
		}
		gs.shutdownError = err
		close(gs.shutdownChan)
	})

	<-gs.shutdownChan
	return gs.shutdownError
}

// Wait blocks until shutdown is complete
func (gs *GracefulShutdown) Wait() error {
	<-gs.shutdownChan
	return gs.shutdownError
}
