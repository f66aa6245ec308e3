package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/internal/catalog"
	grpcSvc "github.com/tonyboom3d/exact-view-framework/internal/delivery/grpc"
	httpDelivery "github.com/tonyboom3d/exact-view-framework/internal/delivery/http"
	"github.com/tonyboom3d/exact-view-framework/internal/hostsim"
	"github.com/tonyboom3d/exact-view-framework/internal/infra/redis"
	"github.com/tonyboom3d/exact-view-framework/internal/metrics"
	repo "github.com/tonyboom3d/exact-view-framework/internal/repository/redis"
	"github.com/tonyboom3d/exact-view-framework/internal/service"
	"github.com/tonyboom3d/exact-view-framework/internal/transport"
	pkgLog "github.com/tonyboom3d/exact-view-framework/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(context.Background(), redisCli, l)

	m := metrics.New()

	// Bridge port
	g, gctx := errgroup.WithContext(ctx)
	var port bridge.Port
	if cfg.Bridge.Transport == config.TransportMemory {
		port = startLocalHost(gctx, g, cfg, l)
	} else {
		port, err = transport.Open(ctx, cfg, redisCli, transport.App, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to open %s bridge transport: %v", cfg.Bridge.Transport, err)
		}
	}

	b := bridge.New(port, l,
		bridge.WithObserver(m),
		bridge.WithDefaultTimeout(cfg.Bridge.DefaultTimeout),
	)

	loader := catalog.NewLoader(b, l, catalog.Embedded(cfg.Catalog.Embedded))
	loader.Start(ctx)

	// Initialize services
	ppRepo := repo.NewRedisPendingPaymentRepository(redisCli, l, cfg.Payment.KeyPrefix, cfg.Payment.PendingTTL)
	tokens := service.NewTokenIssuer(cfg.Session.JWTSecret, cfg.Session.TokenExpiry)
	checkoutSvc := service.NewCheckoutService(b, loader, ppRepo, tokens, service.CheckoutConfig{
		Orchestrator: service.OrchestratorConfig{
			CheckoutTimeout: cfg.Bridge.CheckoutTimeout,
			GraceDelay:      cfg.Payment.GraceDelay,
			ErrorWindow:     cfg.Payment.ErrorWindow,
			PendingTTL:      cfg.Payment.PendingTTL,
		},
		Poller: service.PollerConfig{
			Interval:     cfg.Poller.Interval,
			MaxDuration:  cfg.Poller.MaxDuration,
			ConfirmDelay: cfg.Poller.ConfirmDelay,
			FailDelay:    cfg.Poller.FailDelay,
		},
		EnsureTimeout: cfg.Catalog.EnsureTimeout,
		IdleTTL:       cfg.Session.IdleTTL,
	}, l, service.WithRecorder(m))

	sweeper := service.NewSessionSweeper(checkoutSvc, cfg.Session.SweepInterval, l, nil)
	if err := sweeper.Start(gctx); err != nil {
		l.Fatalf(ctx, "Failed to start session sweeper: %v", err)
	}

	// gRPC server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}
	gRpcSrv := grpcSvc.NewServer(l)
	gRpcSrv.WatchReady(gctx, loader.ReadyC())

	// http server
	h := httpDelivery.NewHTTPHandler(checkoutSvc, tokens, loader.Ready, l)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(h, m.Handler(), l),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		return gRpcSrv.Serve(lnr)
	})
	g.Go(func() error {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info(ctx, "Server shutting down...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := sweeper.Stop(); err != nil {
			l.Warnf(sctx, "Failed to stop session sweeper: %v", err)
		}
		if err := httpSrv.Shutdown(sctx); err != nil {
			l.Errorf(sctx, "HTTP server shutdown: %v", err)
		}
		gRpcSrv.GracefulStop()
		if err := checkoutSvc.Shutdown(sctx); err != nil {
			l.Errorf(sctx, "Checkout service shutdown: %v", err)
		}
		loader.Close()
		if err := b.Close(); err != nil {
			l.Warnf(sctx, "Bridge close: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Server stopped: %v", err)
	}
	l.Info(ctx, "Server exited")
}

// startLocalHost runs the host simulator in-process on the other end of a
// memory pipe.
func startLocalHost(ctx context.Context, g *errgroup.Group, cfg *config.Config, l pkgLog.Logger) bridge.Port {
	scenario, err := hostsim.ParseScenario(cfg.Bridge.SimScenario)
	if err != nil {
		l.Fatalf(ctx, "Invalid simulator scenario: %v", err)
	}

	app, hostEnd := bridge.NewPipe(64)
	host := hostsim.New(hostEnd, l, hostsim.Config{Scenario: scenario, SettleAfter: 2})
	g.Go(func() error {
		defer hostEnd.Close()
		return host.Run(ctx)
	})
	l.Infof(ctx, "Bridge uses the in-process host simulator, scenario %s", scenario)
	return app
}
