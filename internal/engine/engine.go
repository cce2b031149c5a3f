package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadpulse/internal/backend"
	"leadpulse/internal/localtime"
	"leadpulse/internal/notify"
	"leadpulse/internal/sched"
	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

// Config controls engine timing. Zero values fall back to defaults.
type Config struct {
	// UTCOffset is the deployment's fixed business timezone offset.
	UTCOffset time.Duration
	// PollInterval is the assignment/follow-up poll cadence (default 60s).
	PollInterval time.Duration
	// RolloverBuffer delays the midnight rollover slightly past 00:00 so
	// slot instants computed for the new date are unambiguously in the
	// future (default 2m).
	RolloverBuffer time.Duration
	// FetchTimeout bounds every backend call (default 10s).
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.RolloverBuffer <= 0 {
		c.RolloverBuffer = 2 * time.Minute
	}
	if c.RolloverBuffer >= time.Hour {
		c.RolloverBuffer = time.Hour - time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Engine wires the slot scheduler, the poller and the notification sink
// together and owns their lifecycle.
type Engine struct {
	cfg   Config
	zone  localtime.Zone
	store storage.Store
	be    backend.Client
	alert notify.Alerter
	log   logx.Logger

	// now is swappable for tests.
	now func() time.Time

	// pollMu serializes poll ticks so two slow ticks can never interleave
	// their diff/persist sequences.
	pollMu sync.Mutex

	mu        sync.Mutex
	running   bool
	principal backend.Principal
	schedule  backend.ScheduleCfg
	settings  storage.Settings
	sink      *notify.Log
	trig      *sched.Service
	timers    map[string]*time.Timer
	gen       uint64
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, store storage.Store, be backend.Client, alert notify.Alerter, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:      cfg,
		zone:     localtime.NewZone(cfg.UTCOffset),
		store:    store,
		be:       be,
		alert:    alert,
		log:      log,
		now:      time.Now,
		settings: storage.DefaultSettings(),
		timers:   map[string]*time.Timer{},
	}
}

// Start brings the engine up for the given principal. It is idempotent:
// calling it while running is a no-op. Administrator principals get a
// fully inert engine — no timers, no polling, no notifications.
func (e *Engine) Start(ctx context.Context, p backend.Principal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if p.IsAdmin() {
		e.log.Info("principal is an administrator; engine stays idle", logx.String("principal", p.ID))
		return nil
	}

	e.principal = p
	e.runCtx, e.runCancel = context.WithCancel(ctx)

	if st, ok, err := e.store.GetSettings(e.runCtx, p.ID); err != nil {
		e.log.Warn("settings load failed; using defaults", logx.Any("err", err))
		e.settings = storage.DefaultSettings()
	} else if ok {
		e.settings = st
	} else {
		e.settings = storage.DefaultSettings()
	}

	e.sink = notify.NewLog(e.runCtx, e.store, p.ID, e.alert, e.log.With(logx.String("comp", "notify")))

	e.trig = sched.New(e.zone.Location(), e.log.With(logx.String("comp", "sched")))
	// Both jobs tolerate a missed run; timeout covers the slowest backend pair.
	jobTimeout := 2 * e.cfg.FetchTimeout
	if err := e.trig.AddInterval("poll", e.cfg.PollInterval, jobTimeout, e.pollTick); err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}
	if err := e.trig.AddDaily("rollover", bufferHHMM(e.cfg.RolloverBuffer), jobTimeout, e.rollover); err != nil {
		return fmt.Errorf("register rollover job: %w", err)
	}
	e.trig.Start(e.runCtx)

	if cfg, err := e.fetchSchedule(e.runCtx); err != nil {
		// Nothing is armed until the next rollover or an explicit Reschedule,
		// but polling still runs; diagnosable via logs per the failure policy.
		e.log.Warn("schedule config fetch failed at start", logx.Any("err", err))
	} else {
		e.schedule = cfg
	}

	e.running = true
	e.rescheduleLocked(e.zone.DateOf(e.now()))
	e.log.Info("engine started",
		logx.String("principal", p.ID),
		logx.Int("slots", len(e.schedule.Slots)),
		logx.Duration("poll_interval", e.cfg.PollInterval))
	return nil
}

// Stop cancels all armed slot timers and both triggers. Safe to call when
// not running and from any goroutine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.gen++
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
	trig := e.trig
	cancel := e.runCancel
	e.trig = nil
	e.runCtx = nil
	e.runCancel = nil
	e.mu.Unlock()

	if trig != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		trig.Stop(sctx)
		scancel()
	}
	if cancel != nil {
		cancel()
	}
	e.log.Info("engine stopped")
}

// Reschedule re-pulls the slot configuration and re-arms today's slots
// immediately. A failed fetch keeps the previous configuration. No-op when
// the engine is not running.
func (e *Engine) Reschedule(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.log.Debug("reschedule ignored; engine not running")
		return
	}
	if cfg, err := e.fetchSchedule(ctx); err != nil {
		e.log.Warn("schedule config refresh failed; keeping previous", logx.Any("err", err))
	} else {
		e.schedule = cfg
	}
	e.rescheduleLocked(e.zone.DateOf(e.now()))
}

// rollover runs shortly after local midnight: refresh the configuration
// (it may have changed overnight) and re-arm for the new date.
func (e *Engine) rollover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	if cfg, err := e.fetchSchedule(ctx); err != nil {
		// Yesterday's config remains the fallback rather than disabling scheduling.
		e.log.Warn("midnight config refresh failed; keeping previous", logx.Any("err", err))
	} else {
		e.schedule = cfg
	}
	e.rescheduleLocked(e.zone.DateOf(e.now()))
	return nil
}

// Notifications exposes the in-app log surface (list, unread, mark read).
// Nil until the first successful Start.
func (e *Engine) Notifications() *notify.Log {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

func (e *Engine) fetchSchedule(ctx context.Context) (backend.ScheduleCfg, error) {
	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	cfg, err := e.be.ScheduleConfig(fctx, e.principal)
	if err != nil {
		return backend.ScheduleCfg{}, err
	}
	if len(cfg.Slots) == 0 {
		e.log.Warn("schedule config has no slots; nothing will be armed")
	}
	if cfg.GraceMinutes < 0 {
		cfg.GraceMinutes = 0
	}
	return cfg, nil
}

// bufferHHMM renders the rollover offset past midnight as a wall-clock time.
func bufferHHMM(buffer time.Duration) string {
	mins := int(buffer / time.Minute)
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}
