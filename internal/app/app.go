package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/immxrtalbeast/axenix_signal/internal/metrics"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
)

// ErrEngineDied is returned by Run when the media engine stops under it.
// The process is expected to exit non-zero so a supervisor restarts it.
var ErrEngineDied = errors.New("media engine died")

// Engine is the part of the media engine the application supervises.
type Engine interface {
	Done() <-chan struct{}
	Err() error
}

type App struct {
	log             *slog.Logger
	server          *http.Server
	engine          Engine
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
}

func New(log *slog.Logger, handler http.Handler, addr string, engine Engine, m *metrics.Metrics, shutdownTimeout time.Duration) *App {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{
		log: log,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:          engine,
		metrics:         m,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run listens on the configured address and serves until ctx is done or the
// engine dies.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	const op = "app.serve"
	log := a.log.With(slog.String("op", op), slog.String("addr", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var engineDone <-chan struct{}
	if a.engine != nil {
		engineDone = a.engine.Done()
		a.metrics.SetEngineUp(true)
	}
	log.Info("http server started")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return a.shutdown()
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-engineDone:
		a.metrics.SetEngineUp(false)
		if ctx.Err() != nil {
			return a.shutdown()
		}
		cause := a.engine.Err()
		log.Error("media engine died, stopping", sl.Err(cause))
		if err := a.shutdown(); err != nil {
			log.Warn("shutdown failed", sl.Err(err))
		}
		return fmt.Errorf("%w: %v", ErrEngineDied, cause)
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
