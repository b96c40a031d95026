package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sipeed/picodice/cmd/picodice/internal"
	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/channels"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/health"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/router"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 30 * time.Minute
	shutdownTimeout        = 10 * time.Second
)

type gatewayRunner struct {
	cfg            *config.Config
	app            *internal.App
	msgBus         *bus.MessageBus
	channelManager *channels.Manager
	router         *router.Router
	healthServer   *health.Server
}

func newGatewayRunner(cfg *config.Config) (*gatewayRunner, error) {
	app := internal.NewApp(cfg)
	msgBus := bus.NewMessageBus()

	channelManager, err := channels.NewManager(cfg, msgBus, app.Metrics)
	if err != nil {
		return nil, fmt.Errorf("error creating channel manager: %w", err)
	}

	r := &gatewayRunner{
		cfg:            cfg,
		app:            app,
		msgBus:         msgBus,
		channelManager: channelManager,
		router:         router.New(msgBus, app.Dispatcher, app.Metrics),
	}
	if cfg.Gateway.Enabled {
		r.healthServer = health.NewServer(
			cfg.Gateway.Host,
			cfg.Gateway.Port,
			channelManager.GetStatus,
			metrics.Handler(app.Registry),
		)
	}
	return r, nil
}

// run starts every service and blocks until ctx is cancelled, then shuts
// everything down.
func (r *gatewayRunner) run(ctx context.Context) error {
	enabled := r.channelManager.GetEnabledChannels()

	if err := r.channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("error starting channels: %w", err)
	}

	if r.healthServer != nil {
		if err := r.healthServer.Start(); err != nil {
			r.stop()
			return fmt.Errorf("error starting health server: %w", err)
		}
		logger.InfoCF("gateway", "Health endpoints available", map[string]any{
			"addr": r.healthServer.Addr(),
		})
	}

	go r.app.Limiter.RunCleanup(ctx, limiterCleanupInterval, limiterIdleTTL)
	go r.router.Run(ctx)

	logger.InfoCF("gateway", "Gateway started", map[string]any{
		"channels": enabled,
		"prefix":   r.app.Prefix.Get(),
	})

	<-ctx.Done()
	r.stop()
	return nil
}

func (r *gatewayRunner) stop() {
	logger.InfoC("gateway", "Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if r.healthServer != nil {
		if err := r.healthServer.Stop(ctx); err != nil {
			logger.WarnCF("gateway", "Health server shutdown error", map[string]any{"error": err.Error()})
		}
	}
	if err := r.channelManager.StopAll(ctx); err != nil {
		logger.WarnCF("gateway", "Channel shutdown error", map[string]any{"error": err.Error()})
	}
	r.msgBus.Close()

	logger.InfoC("gateway", "Shutdown complete")
}

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := internal.SetupLogging(cfg, debug); err != nil {
		return err
	}
	if debug {
		fmt.Println("🔍 Debug mode enabled")
	}

	runner, err := newGatewayRunner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if enabled := runner.channelManager.GetEnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", enabled)
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}
	fmt.Println("Press Ctrl+C to stop")

	return runner.run(ctx)
}
