package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/infra"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/migrations"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server"
)

func main() {
	service := flag.String("service", server.ServiceAll, "service to run (auth, team, tasks, ships, machinery, ports, voyages, tanks, bunkering, reporting, all)")
	flag.Parse()

	config.LoadDotEnvUp(8)

	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "local" {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", *service))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	if cfg.MigrateOnStart {
		if err := migrate(cfg.Postgres.DSN); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infraDeps, err := infra.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("infra init failed", zap.Error(err))
	}
	defer infraDeps.Close()

	handler, err := server.NewRouter(cfg, *service, infraDeps, metrics.New(*service), logger)
	if err != nil {
		logger.Fatal("router init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
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
		logger.Error("http server stopped", zap.Error(err))
		return
	}
	logger.Info("http server stopped")
}

func migrate(dsn string) error {
	r, err := migrations.NewRunner(dsn)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up()
}
