package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

// maxEntries caps the notification log; the oldest entry is evicted first.
const maxEntries = 50

// Log is the per-principal notification sink: a bounded, newest-first log
// with an unread marker, persisted on every change, with best-effort
// forwarding to the external alert channel.
//
// Add, MarkAllRead and the read accessors are synchronous and safe for
// concurrent use.
type Log struct {
	store   storage.Store
	owner   string
	alerter Alerter
	limiter *rate.Limiter
	log     logx.Logger

	now func() time.Time

	mu         sync.Mutex
	entries    []Entry
	lastReadAt time.Time
}

// NewLog loads the owner's persisted log state and returns the sink.
// A load failure starts from an empty log rather than failing the engine.
func NewLog(ctx context.Context, store storage.Store, owner string, alerter Alerter, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Log{
		store:   store,
		owner:   owner,
		alerter: alerter,
		// Alert channels throttle aggressively; one send per second with a
		// small burst is plenty for reminder traffic.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		log:     log,
		now:     time.Now,
	}

	st, ok, err := store.GetLog(ctx, owner)
	if err != nil {
		log.Warn("notification log load failed; starting empty", logx.Any("err", err))
		return l
	}
	if ok {
		l.entries = fromRecords(st.Entries)
		l.lastReadAt = st.LastReadAt
	}
	return l
}

// Add prepends the entry, truncates to the cap, persists, then forwards to
// the alert channel. Only the persist error is returned; alert delivery is
// best-effort.
func (l *Log) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = l.now()
	}
	if e.Kind == "" {
		e.Kind = KindInfo
	}

	l.mu.Lock()
	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[:maxEntries]
	}
	st := l.stateLocked()
	l.mu.Unlock()

	err := l.store.PutLog(ctx, l.owner, st)
	if err != nil {
		l.log.Warn("notification log persist failed", logx.String("id", e.ID), logx.Any("err", err))
	}

	l.forward(ctx, e)
	return err
}

// forward delivers the entry to the external channel when it is enabled,
// authorized and under the rate limit. Failures are logged and dropped.
func (l *Log) forward(ctx context.Context, e Entry) {
	if l.alerter == nil || !l.alerter.Authorized() {
		return
	}
	if !l.limiter.Allow() {
		l.log.Debug("alert send suppressed by rate limit", logx.String("id", e.ID))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := l.alerter.Send(sctx, e.Title, e.Message); err != nil {
		l.log.Warn("alert send failed", logx.String("id", e.ID), logx.Any("err", err))
	}
}

// List returns the entries, newest first.
func (l *Log) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// UnreadCount counts entries newer than the last read marker.
func (l *Log) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.At.After(l.lastReadAt) {
			n++
		}
	}
	return n
}

// MarkAllRead moves the read marker to now. The log itself is untouched.
func (l *Log) MarkAllRead(ctx context.Context) error {
	l.mu.Lock()
	l.lastReadAt = l.now()
	st := l.stateLocked()
	l.mu.Unlock()
	return l.store.PutLog(ctx, l.owner, st)
}

func (l *Log) stateLocked() storage.LogState {
	return storage.LogState{Entries: toRecords(l.entries), LastReadAt: l.lastReadAt}
}

func toRecords(in []Entry) []storage.LogEntry {
	out := make([]storage.LogEntry, len(in))
	for i, e := range in {
		out[i] = storage.LogEntry{ID: e.ID, Title: e.Title, Message: e.Message, At: e.At, Kind: string(e.Kind)}
	}
	return out
}

func fromRecords(in []storage.LogEntry) []Entry {
	out := make([]Entry, len(in))
	for i, r := range in {
		out[i] = Entry{ID: r.ID, Title: r.Title, Message: r.Message, At: r.At, Kind: Kind(r.Kind)}
	}
	return out
}
