// Package app wires configuration, logging, storage, the backend client,
// the alert channel and the engine into one process lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"leadpulse/internal/backend"
	"leadpulse/internal/config"
	"leadpulse/internal/engine"
	"leadpulse/internal/localtime"
	"leadpulse/internal/notify"
	"leadpulse/internal/storage"
	"leadpulse/internal/transport/telegram"
	logx "leadpulse/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	mu      sync.Mutex
	store   storage.Store
	alerter *telegram.Alerter
	eng     *engine.Engine
	stopFns []func()
}

// New loads and validates the config file and brings the logging service up.
// Everything else waits for Start.
func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info")
	mgr := config.NewManager(cfgPath, boot.With(logx.String("comp", "config")))
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	svc, root := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	return &App{cfgMgr: mgr, logSvc: svc, log: root}, nil
}

// Start builds the component graph from the committed config and starts the
// engine and the config watcher.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	if cfg == nil {
		return fmt.Errorf("no config committed")
	}

	busyTimeout, err := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return err
	}
	driver := strings.TrimSpace(cfg.Storage.Driver)
	path := cfg.Storage.Path
	if driver == "" {
		driver = "file"
		if strings.TrimSpace(path) == "" {
			path = "./leadpulse_store"
		}
	}
	store, err := storage.Open(storage.Config{
		Driver:      driver,
		Path:        path,
		BusyTimeout: busyTimeout,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		// Dedup flags are the at-most-once guarantee; running without them
		// would re-notify on every restart.
		store = storage.NewMemory()
		a.log.Warn("storage disabled; dedup state will not survive restarts")
	}
	a.mu.Lock()
	a.store = store
	a.mu.Unlock()

	var alerter notify.Alerter
	if cfg.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		}, a.log.With(logx.String("comp", "telegram")))
		if err != nil {
			// The in-app log works without the channel; keep the process up.
			a.log.Warn("alert channel init failed; continuing in-app only", logx.Err(err))
		} else {
			alerter = tg
			a.mu.Lock()
			a.alerter = tg
			a.mu.Unlock()
		}
	}

	beTimeout, err := config.ParseDuration("backend.timeout", cfg.Backend.Timeout, 15*time.Second)
	if err != nil {
		return err
	}
	be, err := backend.NewHTTPClient(backend.HTTPConfig{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: beTimeout,
	}, a.log.With(logx.String("comp", "backend")))
	if err != nil {
		return err
	}

	engCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		return err
	}
	eng := engine.New(engCfg, store, be, alerter, a.log.With(logx.String("comp", "engine")))
	if err := eng.Start(ctx, principalFrom(cfg.Principal)); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	if cfg.Settings != nil {
		if err := eng.ApplySettings(ctx, settingsFrom(cfg.Settings, eng.Settings())); err != nil {
			a.log.Warn("initial settings apply failed", logx.Err(err))
		}
	}

	a.mu.Lock()
	a.eng = eng
	a.mu.Unlock()

	a.startWatcher(ctx)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}
	return nil
}

// startWatcher follows the config file and applies live-changeable pieces:
// log level/sinks, notification toggles, and a reschedule so new slot
// definitions take effect without a restart.
func (a *App) startWatcher(ctx context.Context) {
	wctx, wcancel := context.WithCancel(ctx)
	sub := a.cfgMgr.Subscribe(1)

	a.mu.Lock()
	a.stopFns = append(a.stopFns, func() {
		wcancel()
		a.cfgMgr.Unsubscribe(sub)
	})
	a.mu.Unlock()

	go func() { _ = a.cfgMgr.Watch(wctx) }()
	go func() {
		for cfg := range sub {
			a.applyReload(wctx, cfg)
		}
	}()
}

func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})

	a.mu.Lock()
	eng := a.eng
	a.mu.Unlock()
	if eng == nil {
		return
	}
	if cfg.Settings != nil {
		if err := eng.ApplySettings(ctx, settingsFrom(cfg.Settings, eng.Settings())); err != nil {
			a.log.Warn("settings reload apply failed", logx.Err(err))
		}
	}
	eng.Reschedule(ctx)
}

// Stop tears the process down in reverse dependency order. Safe to call
// more than once.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.mu.Lock()
	stopFns := a.stopFns
	eng := a.eng
	alerter := a.alerter
	store := a.store
	a.stopFns = nil
	a.eng = nil
	a.alerter = nil
	a.store = nil
	a.mu.Unlock()

	for _, fn := range stopFns {
		fn()
	}
	if eng != nil {
		eng.Stop()
	}
	if alerter != nil {
		alerter.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("shutdown complete")
	_ = a.logSvc.Close()
	return nil
}

// Engine exposes the running engine (nil before Start).
func (a *App) Engine() *engine.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eng
}

func engineConfig(c config.EngineConfig) (engine.Config, error) {
	offset, err := localtime.ParseOffset(c.UTCOffset)
	if err != nil {
		return engine.Config{}, fmt.Errorf("engine.utc_offset: %w", err)
	}
	poll, err := config.ParseDuration("engine.poll_interval", c.PollInterval, 60*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	rollover, err := config.ParseDuration("engine.rollover_buffer", c.RolloverBuffer, 2*time.Minute)
	if err != nil {
		return engine.Config{}, err
	}
	fetch, err := config.ParseDuration("engine.fetch_timeout", c.FetchTimeout, 10*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		UTCOffset:      offset,
		PollInterval:   poll,
		RolloverBuffer: rollover,
		FetchTimeout:   fetch,
	}, nil
}

func principalFrom(c config.PrincipalConfig) backend.Principal {
	role := backend.RoleAgent
	if strings.EqualFold(strings.TrimSpace(c.Role), "admin") {
		role = backend.RoleAdmin
	}
	return backend.Principal{ID: c.ID, Name: c.Name, Role: role}
}

func settingsFrom(c *config.SettingsConfig, base storage.Settings) storage.Settings {
	if c.Reminders != nil {
		base.Reminders = *c.Reminders
	}
	if c.Assignments != nil {
		base.Assignments = *c.Assignments
	}
	if c.FollowUps != nil {
		base.FollowUps = *c.FollowUps
	}
	return base
}
