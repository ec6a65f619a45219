package commands

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kwai-club/kwai/internal/api"
	"github.com/kwai-club/kwai/internal/cli/ui"
	"github.com/kwai-club/kwai/internal/database"
	"github.com/kwai-club/kwai/internal/logging"
	"github.com/kwai-club/kwai/internal/web/cache"
	"github.com/kwai-club/kwai/internal/web/profiling"
	"github.com/kwai-club/kwai/internal/web/ratelimit"
	"github.com/kwai-club/kwai/internal/web/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the API server on server.host:server.port. The server stops
gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := opts.loadConfig()
	if err == nil {
		err = cfg.RequireSecret()
	}
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		cmd.PrintErr(ui.ConfigError(err.Error(), opts.noColor))
		return err
	}

	// Closed in reverse order on failure or shutdown.
	closers := []func() error{db.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	docs, err := cache.New(cfg.Redis)
	if err != nil {
		closeAll()
		return err
	}
	closers = append(closers, docs.Close)

	var limiter ratelimit.Limiter
	if cfg.Security.LoginLimit > 0 {
		limiter, err = ratelimit.New(cfg.Redis, cfg.Security.LoginLimit, cfg.Security.LoginWindow)
		if err != nil {
			closeAll()
			return err
		}
		closers = append(closers, limiter.Close)
	}

	handler, err := api.New(api.Options{Config: cfg, DB: db, Cache: docs, LoginLimiter: limiter, Logger: logger})
	if err != nil {
		closeAll()
		return err
	}
	srv, err := server.New(server.FromSettings(cfg, handler, db))
	if err != nil {
		closeAll()
		return err
	}

	shutdown := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logging.ShutdownLogger{Logger: logger},
	})
	if addr := cfg.Server.ProfilingAddr; addr != "" {
		pprofServer := profiling.NewServer(addr, nil)
		go func() {
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("profiling server failed", zap.String("address", addr), zap.Error(err))
			}
		}()
		shutdown.RegisterHook(pprofServer.Shutdown)
		logger.Info("profiling enabled", zap.String("address", addr))
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closeFn := closers[i]
		shutdown.RegisterHook(func(context.Context) error { return closeFn() })
	}

	logger.Info("kwai starting",
		zap.String("version", Version),
		zap.String("address", cfg.Server.Address()),
		zap.String("api_prefix", cfg.Server.APIPrefix),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Int("login_limit", cfg.Security.LoginLimit),
	)
	return shutdown.Run(ctx)
}
