package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/pubcrawl-backend/internal/config"
	"github.com/DoyleJ11/pubcrawl-backend/internal/dispatch"
	"github.com/DoyleJ11/pubcrawl-backend/internal/events"
	"github.com/DoyleJ11/pubcrawl-backend/internal/game"
	"github.com/DoyleJ11/pubcrawl-backend/internal/geocode"
	"github.com/DoyleJ11/pubcrawl-backend/internal/httpapi"
	"github.com/DoyleJ11/pubcrawl-backend/internal/hub"
	"github.com/DoyleJ11/pubcrawl-backend/internal/routing"
	"github.com/DoyleJ11/pubcrawl-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(context.Background(), log)
	broadcaster := hub.NewBroadcaster(h, log,
		hub.WithSendTimeout(cfg.BroadcastSendTimeout),
		hub.WithConcurrency(cfg.BroadcastConcurrency),
	)

	bus := events.NewBus(log)
	dispatcher := dispatch.New(context.Background(), broadcaster, log)
	dispatcher.Subscribe(bus)
	dispatch.NewAnalytics(log).Subscribe(bus)

	games, closeStore, err := openStore(ctx, cfg, bus, log)
	if err != nil {
		return err
	}

	outbound := &http.Client{Timeout: cfg.OutboundTimeout}
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Games: game.NewService(games, log),
		Hub:   h,
		Places: geocode.NewSearcher(geocode.Config{
			BaseURL:   cfg.GeocodeBaseURL,
			UserAgent: cfg.GeocodeUserAgent,
			Delay:     cfg.GeocodeDelay,
			Limit:     cfg.GeocodeLimit,
		}, outbound, log),
		Routes: routing.NewRouter(routing.Config{
			BaseURL: cfg.RoutingBaseURL,
			Profile: cfg.RoutingProfile,
		}, outbound, log),
		Log:            log,
		OriginPatterns: cfg.WSOriginPatterns,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return multierr.Append(err, closeStore())
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop taking requests, flush what was committed, then drop sessions.
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	err = multierr.Append(err, dispatcher.Close(shutdownCtx))
	h.Shutdown()
	err = multierr.Append(err, closeStore())
	return err
}

func openStore(ctx context.Context, cfg config.Config, n store.Notifier, log *zap.Logger) (store.Transactor, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, games are lost on restart")
		return store.NewMemory(n), func() error { return nil }, nil
	default:
		pg, err := store.OpenPostgres(cfg.DatabaseURL, n, log)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, nil, multierr.Append(err, pg.Close())
		}
		return pg, pg.Close, nil
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
