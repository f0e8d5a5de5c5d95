package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ThemePulse/internal/domain/repository"
	"ThemePulse/internal/usecase"
	"ThemePulse/pkg/config"
	xhttp "ThemePulse/pkg/http"
	applogger "ThemePulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	feed       *usecase.FeedCollector
	history    *usecase.HistoryRecorder
	httpServer *xhttp.Server
	store      repository.HistoryStore
}

// New creates a new App instance with all dependencies. feed and store may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	feed *usecase.FeedCollector,
	history *usecase.HistoryRecorder,
	httpServer *xhttp.Server,
	store repository.HistoryStore,
) *App {
	return &App{
		cfg:        cfg,
		log:        l.Component("app"),
		feed:       feed,
		history:    history,
		httpServer: httpServer,
		store:      store,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	a.checkStore(ctx)

	if a.feed != nil {
		// a failed first attempt has already scheduled a reconnect
		if err := a.feed.Start(ctx); err != nil {
			a.log.Warn("feed not ready, retrying", applogger.Duration("delay_ms", a.cfg.KIS.ReconnectDelay))
		}
	} else {
		a.log.Warn("upstream credentials missing, feed disabled")
	}

	a.history.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) checkStore(ctx context.Context) {
	if a.store == nil {
		a.log.Warn("clickhouse not configured, durable history disabled")
		return
	}
	if err := a.store.Health(ctx); err != nil {
		a.log.Warn("history store unhealthy", applogger.Error(err))
	}
}

// shutdown gracefully stops all services. Infrastructure clients are closed
// by the injector cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.feed != nil {
		if err := a.feed.Shutdown(ctx); err != nil {
			a.log.Warn("feed stop error", applogger.Error(err))
		}
	}

	a.history.Stop()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
