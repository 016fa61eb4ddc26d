package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/gateway"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
)

func main() {
	config.LoadDotEnvUp(8)

	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "local" {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "gateway"))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	table, err := gateway.NewRouteTable(cfg.Gateway, logger)
	if err != nil {
		logger.Fatal("route table", zap.Error(err))
	}
	for _, r := range table.Routes() {
		logger.Info("route", zap.String("prefix", r.Prefix), zap.Duration("timeout", r.Timeout))
	}

	m := metrics.New("gateway")
	proxy := gateway.NewProxy(table, cfg.Gateway, nil, m, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gateway.NewRouter(cfg, proxy, m, logger),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// Excel exports can run for minutes.
		WriteTimeout: max(cfg.Server.WriteTimeout, cfg.Gateway.ExcelTimeout),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
		return
	}
	logger.Info("gateway stopped")
}
