// Package app assembles the service components and owns the HTTP
// listener in front of them.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/broadcast"
	"chatrelay/internal/config"
	"chatrelay/internal/history"
	"chatrelay/internal/limiter"
	"chatrelay/internal/websocket"
)

// Application wires store -> registry -> limiter -> dispatcher -> handler
// and serves them. Construction order follows the dependency chain.
type Application struct {
	cfg        *config.Config
	log        zerolog.Logger
	store      *history.SQLiteStore
	registry   *websocket.Registry
	limiter    *limiter.SlidingWindow
	dispatcher *broadcast.Dispatcher
	mux        *http.ServeMux
	httpServer *http.Server
}

func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := history.NewSQLiteStore(cfg.DatabasePath, cfg.ConversationID, log)
	if err != nil {
		return nil, fmt.Errorf("initialize history store: %w", err)
	}

	registry := websocket.NewRegistry()
	lim := limiter.NewSlidingWindow(cfg.RateLimitMaxCalls, cfg.RateLimitWindow)
	dispatcher := broadcast.NewDispatcher(store, registry, log)
	handler := websocket.NewHandler(registry, store, lim, dispatcher, websocket.Options{
		HistoryLimit: cfg.HistoryLimit,
		PingInterval: cfg.PingInterval,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		WriteBuffer:  cfg.WriteBuffer,
	}, log)

	a := &Application{
		cfg:        cfg,
		log:        log.With().Str("component", "app").Logger(),
		store:      store,
		registry:   registry,
		limiter:    lim,
		dispatcher: dispatcher,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleIndex)
	mux.HandleFunc("/ws", handler.HandleChat)
	mux.HandleFunc("/health", a.handleHealth)
	a.mux = mux
	a.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	return a, nil
}

// Handler exposes the route table; used by tests to serve the
// application without binding the configured port.
func (a *Application) Handler() http.Handler { return a.mux }

// Start brings the listener up and returns once it is accepting.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info().Str("addr", a.httpServer.Addr).Msg("starting chatrelay")

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		_ = a.store.Close()
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info().Msg("chatrelay started")
		return nil
	case <-ctx.Done():
		_ = a.store.Close()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: listener first so no new
// sessions arrive, then the history store.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info().Msg("shutting down")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown")
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close")
	}

	a.log.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]any{
		"status":  "ok",
		"clients": a.registry.Len(),
	}
	code := http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
