package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"violin-coach-service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Run starts the API server and the observability server, then blocks until
// the context is cancelled, a termination signal arrives, or the API server
// fails. On the way out it drains both servers, ends any active sessions and
// closes the publisher and store.
func (a *Application) Run(ctx context.Context, apiHandler http.Handler) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:              ":" + a.Cfg.Service.HTTPPort,
		Handler:           apiHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	obsServer := observability.NewServer(":"+a.Cfg.Observability.MetricsPort, a.Ready)
	obsServer.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", apiServer.Addr).Msg("Starting API HTTP server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case <-ctx.Done():
		a.Log.Info().Msg("Context cancelled")
	case s := <-sig:
		a.Log.Info().Str("signal", s.String()).Msg("Termination signal received")
	case err := <-errCh:
		a.Log.Error().Err(err).Msg("API HTTP server failed")
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn().Err(err).Msg("API server shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn().Err(err).Msg("Observability server shutdown failed")
	}
	a.Shutdown(shutdownCtx)

	a.Log.Info().Msg("Service stopped")
	return runErr
}
