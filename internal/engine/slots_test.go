package engine

import (
	"context"
	"testing"
	"time"

	"leadpulse/internal/backend"
)

func TestRescheduleArmsWithinGraceOnly(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeClient{}, time.Time{})
	now := localAt(e, "09:30")
	e.now = func() time.Time { return now }
	e.schedule = backend.ScheduleCfg{
		GraceMinutes: 20,
		Slots: []backend.ReminderSlot{
			{Key: "early", Time: "09:00", Label: "Morning check"},  // 30m past, beyond grace
			{Key: "recent", Time: "09:25", Label: "Recent"},        // 5m past, inside grace
			{Key: "later", Time: "10:00", Label: "Mid-morning"},    // future
			{Key: "broken", Time: "9 o'clock", Label: "Malformed"}, // skipped
		},
	}

	e.mu.Lock()
	e.rescheduleLocked(e.zone.DateOf(now))
	armed := make(map[string]bool, len(e.timers))
	for k := range e.timers {
		armed[k] = true
	}
	e.mu.Unlock()

	if armed["early"] {
		t.Error("slot beyond the grace window was armed")
	}
	if armed["broken"] {
		t.Error("malformed slot was armed")
	}
	if !armed["recent"] {
		t.Error("slot inside the grace window was not armed")
	}
	if !armed["later"] {
		t.Error("future slot was not armed")
	}
}

func TestFireSlotIsOncePerDay(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeClient{}, time.Time{})
	now := localAt(e, "09:05")
	e.now = func() time.Time { return now }
	date := e.zone.DateOf(now)
	slot := backend.ReminderSlot{Key: "morning", Time: "09:00", Label: "Morning check"}

	gen := e.gen
	e.fireSlot(gen, date, slot)
	e.fireSlot(gen, date, slot)

	entries := e.sink.List()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Title != "Morning check" {
		t.Fatalf("entry title = %q", entries[0].Title)
	}

	// A re-arm for the same date (new generation) must not re-fire either.
	e.mu.Lock()
	e.gen++
	gen = e.gen
	e.mu.Unlock()
	e.fireSlot(gen, date, slot)
	if got := len(e.sink.List()); got != 1 {
		t.Fatalf("entries after same-day re-arm = %d, want 1", got)
	}

	// The next local date is a fresh dedup key.
	e.fireSlot(gen, date.Next(), slot)
	if got := len(e.sink.List()); got != 2 {
		t.Fatalf("entries after next-day fire = %d, want 2", got)
	}
}

func TestFireSlotStaleGenerationIgnored(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeClient{}, time.Time{})
	now := localAt(e, "09:05")
	e.now = func() time.Time { return now }
	date := e.zone.DateOf(now)

	stale := e.gen
	e.mu.Lock()
	e.gen++
	e.mu.Unlock()

	e.fireSlot(stale, date, backend.ReminderSlot{Key: "morning", Time: "09:00"})
	if got := len(e.sink.List()); got != 0 {
		t.Fatalf("stale-generation fire produced %d entries", got)
	}
}

func TestFireSlotDisabledLeavesNoFlag(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeClient{}, time.Time{})
	now := localAt(e, "09:05")
	e.now = func() time.Time { return now }
	date := e.zone.DateOf(now)
	slot := backend.ReminderSlot{Key: "morning", Time: "09:00", Label: "Morning check"}

	if err := e.SetSetting(context.Background(), CategoryReminders, false); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	e.fireSlot(e.gen, date, slot)
	if got := len(e.sink.List()); got != 0 {
		t.Fatalf("disabled category produced %d entries", got)
	}

	// Re-enabling before the window closes lets the same slot still fire:
	// the suppressed attempt must not have burned the dedup flag.
	if err := e.SetSetting(context.Background(), CategoryReminders, true); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	e.fireSlot(e.gen, date, slot)
	if got := len(e.sink.List()); got != 1 {
		t.Fatalf("re-enabled fire produced %d entries, want 1", got)
	}
}

func TestRescheduleReplacesArmedTimers(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeClient{}, time.Time{})
	now := localAt(e, "08:00")
	e.now = func() time.Time { return now }
	date := e.zone.DateOf(now)
	e.schedule = backend.ScheduleCfg{
		Slots: []backend.ReminderSlot{{Key: "morning", Time: "09:00"}},
	}

	e.mu.Lock()
	e.rescheduleLocked(date)
	first := e.gen
	e.rescheduleLocked(date)
	second := e.gen
	n := len(e.timers)
	e.mu.Unlock()

	if second <= first {
		t.Fatalf("generation did not advance: %d -> %d", first, second)
	}
	if n != 1 {
		t.Fatalf("timers after re-arm = %d, want 1", n)
	}
}
