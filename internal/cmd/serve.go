package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server with graceful shutdown support.

Routes:
  POST /api/v1/commands/{command}  escalating penalty limiter
  GET  /api/v1/hello               keyed window limiter
  POST /api/v1/broadcast           fixed window limiter
  GET  /api/v1/limits              limiter state and denial counts
  GET  /health, /metrics

Ctrl+C (SIGINT) or SIGTERM shuts the server down and stops the sweeper.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				opts.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				opts.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides server.port)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	logger := log.Logger()

	limiters, err := buildLimiters(cfg, clock.System())
	if err != nil {
		return err
	}

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()

	sweeper, err := ratelimiter.NewSweeper(cfg.Sweep.Interval, cfg.Sweep.Retention, sweepTargets(limiters))
	if err != nil {
		return err
	}
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Run(sweepCtx)

	deps := server.Deps{
		Limiters:  limiters,
		Extractor: buildExtractor(cfg),
		Policy:    buildPolicy(cfg, sinks.all),
		Denials:   sinks.memory,
	}
	if sinks.registry != nil {
		deps.Gatherer = prometheus.Gatherer(sinks.registry)
	}
	srv := server.New(cfg.Server, deps)

	logger.Info("Initializing server",
		zap.String("addr", srv.Addr()),
		zap.Duration("commandsCooldown", cfg.Limits.Commands.BaseCooldown),
		zap.Duration("helloCooldown", cfg.Limits.Hello.Cooldown),
		zap.Duration("broadcastCooldown", cfg.Limits.Broadcast.Cooldown),
		zap.Bool("redis", sinks.redis != nil),
		zap.Bool("metrics", sinks.registry != nil))

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}
