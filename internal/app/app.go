// Package app wires the daemon together: config, logging, storage, the push
// hub, the detection jobs, the scheduler, and the control server.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"taskping/internal/config"
	"taskping/internal/detect"
	"taskping/internal/dispatch"
	"taskping/internal/push"
	"taskping/internal/scheduler"
	"taskping/internal/server"
	"taskping/internal/store"
	"taskping/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config
	set     *config.Settings

	log  logx.Logger
	logs *logx.Service

	store store.Store
	hub   *push.Hub
	sched *scheduler.Service
	srv   *server.Server

	watchCancel context.CancelFunc
}

// New loads and validates the config at cfgPath and builds every service.
// Any config problem is returned here; the daemon never starts half-wired.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	set, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Log)
	log = log.With(logx.String("comp", "app"))

	st, err := store.Open(store.Config{
		Path:        cfg.DB.Path,
		BusyTimeout: set.DBBusyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	hub := push.NewHub(push.Config{
		SendTimeout: set.PushSendTimeout,
		RatePerSec:  set.PushRatePerSec,
	}, log.With(logx.String("comp", "push")))

	eng := detect.NewEngine(st, st, set.Location, log.With(logx.String("comp", "detect")))
	disp := dispatch.New(st, hub, log.With(logx.String("comp", "dispatch")))

	sched := scheduler.New(scheduler.Config{
		Location:       set.Location,
		DefaultTimeout: set.JobTimeout,
		ShutdownGrace:  set.ShutdownGrace,
	}, log.With(logx.String("comp", "scheduler")))

	a := &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		set:     set,
		log:     log,
		logs:    logSvc,
		store:   st,
		hub:     hub,
		sched:   sched,
	}

	for _, spec := range a.jobSpecs(eng, disp) {
		if err := sched.Register(spec); err != nil {
			st.Close()
			logSvc.Close()
			return nil, err
		}
	}

	a.srv = server.New(server.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  set.HTTPRead,
		WriteTimeout: set.HTTPWrite,
	}, sched, log.With(logx.String("comp", "server")))

	return a, nil
}

// Hub exposes the push hub so transports can attach live recipients.
func (a *App) Hub() *push.Hub { return a.hub }

// Scheduler exposes the scheduler for status queries.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Start(); err != nil {
		return err
	}
	if err := a.srv.Start(); err != nil {
		a.sched.Stop(context.Background())
		return err
	}

	// Hot reload re-applies the logging config only. Cadence or storage
	// changes take effect on restart; the watcher says so instead of
	// pretending to apply them.
	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	go func() {
		wlog := a.log.With(logx.String("comp", "config"))
		if err := config.Watch(wctx, a.cfgPath, wlog, a.onReload); err != nil {
			wlog.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("started",
		logx.String("addr", a.srv.Addr()),
		logx.String("tz", a.set.Location.String()))
	return nil
}

func (a *App) onReload(next *config.Config) {
	a.logs.Apply(next.Log)
	if next.Scheduler != a.cfg.Scheduler || next.DB != a.cfg.DB || next.HTTP != a.cfg.HTTP {
		a.log.Warn("scheduler/db/http config changed on disk; restart to apply")
	}
	a.cfg = next
	a.log.Info("config reloaded", logx.String("log_level", next.Log.Level))
}

// Stop shuts everything down in reverse order: stop admitting HTTP work,
// disarm and drain the scheduler, then close storage and logging.
func (a *App) Stop(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.watchCancel != nil {
		a.watchCancel()
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := a.srv.Stop(sctx); err != nil {
		a.log.Warn("control server shutdown", logx.Err(err))
	}
	cancel()

	a.sched.Stop(ctx)

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logs.Close()
}
