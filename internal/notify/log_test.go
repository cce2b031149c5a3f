package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

func TestLogCapsAtFifty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLog(ctx, storage.NewMemory(), "u1", nil, logx.Nop())

	for i := 0; i < 51; i++ {
		err := l.Add(ctx, Entry{Title: fmt.Sprintf("entry %d", i)})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got := l.List()
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	if got[0].Title != "entry 50" {
		t.Fatalf("newest entry = %q, want entry 50", got[0].Title)
	}
	// Entry 0 (the oldest) was evicted.
	for _, e := range got {
		if e.Title == "entry 0" {
			t.Fatal("oldest entry was not evicted")
		}
	}
}

func TestUnreadCountTracksReadMarker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLog(ctx, storage.NewMemory(), "u1", nil, logx.Nop())

	clock := time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	_ = l.Add(ctx, Entry{Title: "a"})
	_ = l.Add(ctx, Entry{Title: "b"})
	if got := l.UnreadCount(); got != 2 {
		t.Fatalf("UnreadCount = %d, want 2", got)
	}

	if err := l.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if got := l.UnreadCount(); got != 0 {
		t.Fatalf("UnreadCount after mark = %d, want 0", got)
	}
	if got := len(l.List()); got != 2 {
		t.Fatalf("MarkAllRead altered the log, len = %d", got)
	}

	_ = l.Add(ctx, Entry{Title: "c"})
	if got := l.UnreadCount(); got != 1 {
		t.Fatalf("UnreadCount after new entry = %d, want 1", got)
	}
}

func TestLogPersistsAcrossRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()

	l := NewLog(ctx, st, "u1", nil, logx.Nop())
	_ = l.Add(ctx, Entry{Title: "kept", Kind: KindWarning})
	_ = l.MarkAllRead(ctx)

	l2 := NewLog(ctx, st, "u1", nil, logx.Nop())
	got := l2.List()
	if len(got) != 1 || got[0].Title != "kept" || got[0].Kind != KindWarning {
		t.Fatalf("unexpected reloaded entries: %+v", got)
	}
	if l2.UnreadCount() != 0 {
		t.Fatalf("read marker lost, unread = %d", l2.UnreadCount())
	}
}

type recordingAlerter struct {
	authorized bool
	fail       bool
	sent       []string
}

func (a *recordingAlerter) Authorized() bool { return a.authorized }
func (a *recordingAlerter) Send(_ context.Context, title, _ string) error {
	if a.fail {
		return fmt.Errorf("send refused")
	}
	a.sent = append(a.sent, title)
	return nil
}

func TestAlertForwardingIsBestEffort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Unauthorized channel: entry recorded, nothing sent.
	a := &recordingAlerter{authorized: false}
	l := NewLog(ctx, storage.NewMemory(), "u1", a, logx.Nop())
	if err := l.Add(ctx, Entry{Title: "quiet"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(a.sent) != 0 {
		t.Fatalf("unauthorized channel received %d sends", len(a.sent))
	}
	if len(l.List()) != 1 {
		t.Fatal("entry was not recorded")
	}

	// Failing channel: Add still succeeds.
	b := &recordingAlerter{authorized: true, fail: true}
	l2 := NewLog(ctx, storage.NewMemory(), "u1", b, logx.Nop())
	if err := l2.Add(ctx, Entry{Title: "still logged"}); err != nil {
		t.Fatalf("Add with failing alerter: %v", err)
	}

	// Healthy channel: forwarded.
	c := &recordingAlerter{authorized: true}
	l3 := NewLog(ctx, storage.NewMemory(), "u1", c, logx.Nop())
	_ = l3.Add(ctx, Entry{Title: "delivered"})
	if len(c.sent) != 1 || c.sent[0] != "delivered" {
		t.Fatalf("unexpected sends: %v", c.sent)
	}
}
