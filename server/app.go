package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// App owns the HTTP server lifecycle.
type App struct {
	server            *http.Server
	logger            *slog.Logger
	shutdownTimeout   time.Duration
	cancelServerScope context.CancelFunc
	ready             atomic.Bool
}

// NewApp wires the API, probes and metrics into one HTTP server.
func NewApp(addr string, api *Server, metrics *Metrics, shutdownTimeout time.Duration, logger *slog.Logger) (*App, error) {
	if addr == "" {
		return nil, errors.New("new app: empty address")
	}
	if api == nil {
		return nil, errors.New("new app: nil api server")
	}
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}
	if shutdownTimeout <= 0 {
		return nil, errors.New("new app: shutdown timeout must be > 0")
	}

	serverScopeCtx, cancelServerScope := context.WithCancel(context.Background())
	a := &App{
		logger:            logger,
		shutdownTimeout:   shutdownTimeout,
		cancelServerScope: cancelServerScope,
	}

	r := chi.NewRouter()
	r.Use(requestLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errorCodeNotFound, fmt.Sprintf("no route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errorCodeMethodNotAllowed,
			fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path))
	})
	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	api.Register(r)

	a.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverScopeCtx
		},
	}
	return a, nil
}

// Handler returns the root handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Start listens until Shutdown is called.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (a *App) Serve(ln net.Listener) error {
	a.ready.Store(true)
	a.logger.Info("http server listening", "addr", ln.Addr().String())

	err := a.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	a.ready.Store(false)
	return err
}

// Shutdown stops accepting requests and waits for in-flight runs.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}
	a.ready.Store(false)
	err := a.server.Shutdown(ctx)
	a.cancelServerScope()
	return err
}

// Run serves until ctx is cancelled, then shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writePlain(w, http.StatusOK, "ok")
}

func (a *App) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !a.ready.Load() {
		writePlain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writePlain(w, http.StatusOK, "ready")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
