// Package app assembles the server: configuration, quiz catalog,
// registry, session store, push channel and HTTP API, with one lifecycle
// for the lot.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"quizhub/internal/api"
	"quizhub/internal/config"
	"quizhub/internal/quiz"
	"quizhub/internal/registry"
	"quizhub/internal/store"
	"quizhub/internal/ws"
)

// Application coordinates all server components. Construction follows
// dependency order: catalog, registry and store first, then the push
// channel and API over them, then the HTTP server over everything.
type Application struct {
	cfg         *config.Config
	log         zerolog.Logger
	catalog     *quiz.SQLiteCatalog
	registry    *registry.Registry
	store       *store.Store
	broadcaster *ws.Broadcaster
	wsHandler   *ws.Handler
	apiServer   *api.Server
	httpServer  *http.Server
}

// NewApplication builds a fully wired application from cfg.
func NewApplication(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := quiz.OpenSQLite(cfg.Quiz.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open quiz catalog: %w", err)
	}
	if err := catalog.Seed(context.Background(), quiz.SampleQuizzes()); err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to seed quiz catalog: %w", err)
	}

	reg := registry.NewRegistry(log)
	st := store.NewStore(log)
	broadcaster := ws.NewBroadcaster(log)
	wsHandler := ws.NewHandler(reg, st, broadcaster, cfg.WebSocket, log)
	apiServer := api.NewServer(reg, st, catalog, log)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	return &Application{
		cfg:         cfg,
		log:         log.With().Str("component", "app").Logger(),
		catalog:     catalog,
		registry:    reg,
		store:       st,
		broadcaster: broadcaster,
		wsHandler:   wsHandler,
		apiServer:   apiServer,
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully within the configured timeout.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info().Str("addr", a.httpServer.Addr).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.catalog.Close()
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	a.log.Info().Msg("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if cerr := a.catalog.Close(); err == nil {
		err = cerr
	}
	return err
}
