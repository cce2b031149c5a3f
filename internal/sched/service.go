package sched

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"leadpulse/internal/localtime"
	logx "leadpulse/pkg/logx"
)

// Service runs named recurring jobs (poll ticks, the midnight rollover) on
// a cron scheduler pinned to the deployment's fixed-offset location.
//
// Jobs are registered under a stable name; re-registering a name replaces
// the previous definition. Registering while stopped is supported: the
// definition is kept and armed on the next Start().
type Service struct {
	mu sync.Mutex

	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []jobDef

	queue  chan task
	stopCh chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

type jobDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
}

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

const workers = 2

func New(loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	// Fresh queue per run so stale tasks from a previous run are never executed.
	s.queue = make(chan task, 64)

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.defs {
		s.armLocked(&s.defs[i])
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue
	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in sched worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}
	s.c.Start()
	s.log.Debug("trigger service started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.stopCh = nil
	s.runCancel = nil
	s.runCtx = nil
	s.c = nil
	s.queue = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// workers finish in the background
	}
	s.log.Debug("trigger service stopped")
}

// AddInterval registers (or replaces) a job that runs every `every`.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) error {
	if every <= 0 {
		return errors.New("interval must be positive")
	}
	return s.add(name, fmt.Sprintf("@every %s", every.String()), timeout, job)
}

// AddDaily registers (or replaces) a job that runs daily at HH:MM in the
// service's location.
func (s *Service) AddDaily(name, hhmm string, timeout time.Duration, job func(ctx context.Context) error) error {
	h, m, err := localtime.ParseHHMM(hhmm)
	if err != nil {
		return err
	}
	return s.add(name, fmt.Sprintf("%d %d * * *", m, h), timeout, job)
}

func (s *Service) add(name, spec string, timeout time.Duration, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, jobDef{name: name, spec: spec, timeout: timeout, job: job})
	if s.c != nil {
		d := &s.defs[len(s.defs)-1]
		s.armLocked(d)
		if d.entryID == 0 {
			return fmt.Errorf("register %q: bad spec %q", name, spec)
		}
	}
	return nil
}

// Remove unschedules the named job. Safe to call while stopped.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) armLocked(d *jobDef) {
	// Copy the definition out of s.defs before handing it to cron: the
	// closure outlives slice compaction in removeLocked, so capturing the
	// pointer would let a replaced cell leak another job's definition.
	t := task{name: d.name, timeout: d.timeout, run: d.job}
	eid, err := s.c.AddFunc(d.spec, func() {
		s.enqueue(t)
	})
	if err != nil {
		s.log.Error("job register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Any("err", err))
		return
	}
	d.entryID = eid
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("trigger queue full; dropping run", logx.String("job", t.name))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	var cancel func()
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	// Failures never propagate; the job reruns on its next trigger.
	if err := t.run(runCtx); err != nil {
		s.log.Warn("job failed", logx.String("job", t.name), logx.Duration("dur", time.Since(start)), logx.Any("err", err))
		return
	}
	s.log.Debug("job completed", logx.String("job", t.name), logx.Duration("dur", time.Since(start)))
}
