package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	dirmetrics "beacon/internal/directory/metrics"
	"beacon/internal/directory/service"
	"beacon/internal/directory/store"
	"beacon/internal/dispatch"
	dispatchmetrics "beacon/internal/dispatch/metrics"
	"beacon/internal/gateway"
	"beacon/internal/platform/config"
	"beacon/internal/platform/logger"
	"beacon/internal/platform/postgres"
	"beacon/internal/platform/redis"
	"beacon/internal/routing"
	routingmetrics "beacon/internal/routing/metrics"
	"beacon/pkg/platform/circuit"
)

// app holds the wired services for one process.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	directory *service.Service
	engine    *routing.Engine
	closers   []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// loadConfig reads config and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, sync, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, sync, nil
}

// newApp wires the store, directory, gateway, dispatcher and routing engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, sync, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() error {
		_ = sync()
		return nil
	})
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	contactStore, err := a.openStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.directory, err = service.New(contactStore,
		service.WithLogger(log),
		service.WithMetrics(dirmetrics.New(a.registry)),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sender, err := a.newSender()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithMetrics(dispatchmetrics.New(a.registry)),
	}
	if cfg.Gateway.BreakerFailures > 0 {
		log.Warn("gateway circuit breaker enabled; recipients are skipped while it is open",
			"failures", cfg.Gateway.BreakerFailures,
			"cooldown", cfg.Gateway.BreakerCooldown,
		)
		dispatchOpts = append(dispatchOpts, dispatch.WithBreaker(circuit.New("sms-gateway",
			circuit.WithFailureThreshold(cfg.Gateway.BreakerFailures),
			circuit.WithCooldown(cfg.Gateway.BreakerCooldown),
		)))
	}
	dispatcher, err := dispatch.New(sender, dispatchOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.engine, err = routing.New(a.directory, dispatcher,
		routing.WithLogger(log),
		routing.WithMetrics(routingmetrics.New(a.registry)),
		routing.WithTemplates(routing.Templates{
			EscalationPrefix:      cfg.Routing.EscalationPrefix,
			ForwardedConfirmation: cfg.Routing.ForwardedConfirmation,
			BroadcastConfirmation: cfg.Routing.BroadcastConfirmation,
		}),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (service.Store, error) {
	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return store.NewPostgres(db), nil
	case config.StoreRedis:
		client, err := redis.New(ctx, a.cfg.Store.Redis())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return store.NewRedis(client.Client), nil
	case config.StoreMemory:
		a.logger.Warn("using in-memory contact store; contacts are lost on restart")
		return store.NewInMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *app) newSender() (dispatch.Sender, error) {
	switch a.cfg.Gateway.Driver {
	case config.GatewayHTTP:
		sender, err := gateway.NewHTTPSender(gateway.HTTPConfig{
			BaseURL:   a.cfg.Gateway.BaseURL,
			AccountID: a.cfg.Gateway.AccountID,
			AuthToken: a.cfg.Gateway.AuthToken,
			From:      a.cfg.Gateway.From,
			Timeout:   a.cfg.Gateway.Timeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case config.GatewayLog:
		return gateway.NewLogSender(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", a.cfg.Gateway.Driver)
	}
}

// openPostgres is used by commands that need the raw pool.
func openPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Store.Driver != config.StorePostgres {
		return nil, fmt.Errorf("store.driver is %q; migrate only applies to postgres", cfg.Store.Driver)
	}
	return postgres.Open(ctx, cfg.Store.PostgresDSN)
}
