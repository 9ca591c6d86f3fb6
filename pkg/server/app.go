package server

import (
	"context"
	"errors"
	"io"

	"FinFusion/internal/broadcast"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/middleware"
	"FinFusion/internal/scheduler"
	"FinFusion/internal/usecase"
	"FinFusion/pkg/cache"
	pkgch "FinFusion/pkg/clickhouse"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/postgres"
)

// Deps are the components the app starts and stops. Optional backends are
// nil when disabled in config.
type Deps struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Scheduler  *scheduler.Scheduler
	HTTP       *xhttp.Server
	WS         *broadcast.WSHandler
	Hub        *broadcast.Hub
	Relay      *broadcast.RedisRelay
	Consumer   *pkgkafka.Consumer
	Snapshots  *usecase.KafkaSnapshotsHandler
	Ingest     *middleware.SnapshotPipeline
	Producer   *pkgkafka.Producer
	Alerts     domrepo.AlertStore
	History    domrepo.SnapshotHistory
	Postgres   *postgres.Client
	ClickHouse *pkgch.Client
	Cache      cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	l      *applogger.Logger
	cancel context.CancelFunc
}

func New(d Deps) *App {
	l := d.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{Deps: d, l: l.Named("app")}
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// down.
func (a *App) Run(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	if a.Relay != nil {
		go func() {
			if err := a.Relay.Run(bg); err != nil {
				a.l.Error("broadcast relay stopped", applogger.Error(err))
			}
		}()
	}

	a.Ingest.Start(bg)
	if a.Consumer != nil && a.Snapshots != nil {
		a.Consumer.RegisterHandler(a.Snapshots)
		if err := a.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer start failed", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.Snapshots.Topic()))
	}

	a.Scheduler.Start()
	if a.Config.Scheduler.RunOnStart {
		if err := a.Scheduler.RunNow("market", "fusion"); err != nil {
			a.l.Warn("initial run failed", applogger.Error(err))
		}
	}

	if err := a.HTTP.Start(); err != nil {
		a.l.Error("http server start failed", applogger.Error(err))
		return err
	}
	a.l.Info("finfusion started",
		applogger.String("env", a.Config.Environment),
		applogger.Strings("symbols", a.Config.Fusion.Symbols),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops producers of work before the backends they write to.
func (a *App) Shutdown(parent context.Context) error {
	var errs []error

	// The scheduler may outlive its budget by up to one job timeout so an
	// alert write in flight is never cut short.
	stopCtx, stopCancel := context.WithTimeout(parent, a.Config.Server.ShutdownTimeout)
	if err := a.Scheduler.Stop(stopCtx); err != nil {
		errs = append(errs, err)
		a.l.Warn("scheduler stop error", applogger.Error(err))
	}
	stopCancel()

	ctx, cancel := context.WithTimeout(parent, a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.HTTP.Stop(ctx); err != nil {
		errs = append(errs, err)
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.Ingest.Stop()

	_ = a.WS.Close()
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.Hub.Close()

	a.Logger.RemoveCollector()
	if a.Producer != nil {
		a.close("kafka producer", a.Producer)
	}

	a.close("alert store", a.Alerts)
	a.close("snapshot history", a.History)
	if a.Postgres != nil {
		a.Postgres.Close()
	}
	if a.ClickHouse != nil {
		a.close("clickhouse", a.ClickHouse)
	}
	if c, ok := a.Cache.(io.Closer); ok {
		a.close("cache", c)
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) close(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		a.l.Warn("close error", applogger.String("component", name), applogger.Error(err))
	}
}
