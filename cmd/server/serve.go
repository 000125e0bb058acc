package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dirhandler "beacon/internal/directory/handler"
	"beacon/internal/platform/httpserver"
	"beacon/internal/platform/metrics"
	routinghandler "beacon/internal/routing/handler"
	httptransport "beacon/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server exposing the inbound webhook, the contact
directory API, /healthz and /metrics.

Examples:
  beacon serve --config /etc/beacon/beacon.yaml
  BEACON_STORE_DRIVER=postgres BEACON_STORE_POSTGRES_DSN=postgres://... beacon serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         a.logger,
		Metrics:        metrics.New(a.registry),
		Gatherer:       a.registry,
		Health:         a.directory,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		Handlers: []httptransport.Registrar{
			dirhandler.New(a.directory, a.logger),
			routinghandler.New(a.engine, a.logger),
		},
	})
	srv := httpserver.New(a.cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting beacon",
			"addr", a.cfg.Server.Addr,
			"store", a.cfg.Store.Driver,
			"gateway", a.cfg.Gateway.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
