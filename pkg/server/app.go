package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "MarketSnap/pkg/http"
	applogger "MarketSnap/pkg/logger"
)

// Component is a background service started before the HTTP server and
// stopped after it.
type Component interface {
	Name() string
	Start() error
	Stop(ctx context.Context) error
}

type funcComponent struct {
	name  string
	start func() error
	stop  func(ctx context.Context) error
}

func (f funcComponent) Name() string { return f.name }

func (f funcComponent) Start() error {
	if f.start == nil {
		return nil
	}
	return f.start()
}

func (f funcComponent) Stop(ctx context.Context) error {
	if f.stop == nil {
		return nil
	}
	return f.stop(ctx)
}

// NewComponent adapts a start/stop pair. Either function may be nil.
func NewComponent(name string, start func() error, stop func(ctx context.Context) error) Component {
	return funcComponent{name: name, start: start, stop: stop}
}

// App encapsulates the entire application lifecycle.
type App struct {
	httpServer      *xhttp.Server
	components      []Component
	shutdownTimeout time.Duration
	l               *applogger.Logger
}

// New creates a new App. Components start in order and stop in reverse.
func New(httpServer *xhttp.Server, l *applogger.Logger, shutdownTimeout time.Duration, components ...Component) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{
		httpServer:      httpServer,
		components:      components,
		shutdownTimeout: shutdownTimeout,
		l:               l,
	}
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.l }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	started := make([]Component, 0, len(a.components))
	for _, c := range a.components {
		if err := c.Start(); err != nil {
			a.stopComponents(started)
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		a.l.Info("component started", applogger.String("component", c.Name()))
		started = append(started, c)
	}

	if err := a.httpServer.Start(); err != nil {
		a.stopComponents(started)
		return fmt.Errorf("start http server: %w", err)
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown(started)
}

func (a *App) shutdown(started []Component) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if err := a.stopComponentsCtx(ctx, started); err != nil && firstErr == nil {
		firstErr = err
	}

	a.l.Info("shutdown complete")
	return firstErr
}

func (a *App) stopComponents(started []Component) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	_ = a.stopComponentsCtx(ctx, started)
}

func (a *App) stopComponentsCtx(ctx context.Context, started []Component) error {
	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		c := started[i]
		if err := c.Stop(ctx); err != nil {
			a.l.Warn("component stop error", applogger.String("component", c.Name()), applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		a.l.Info("component stopped", applogger.String("component", c.Name()))
	}
	return firstErr
}
