package engine

import (
	"fmt"
	"time"

	"leadpulse/internal/backend"
	"leadpulse/internal/localtime"
	"leadpulse/internal/notify"
	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

// rescheduleLocked cancels every armed slot timer and re-arms the given
// local date from the active schedule. Call with e.mu held.
//
// Arming rules per slot:
//   - elapsed beyond the grace window -> skipped for this date
//   - inside the grace window -> armed with zero delay (catch-up fire)
//   - in the future -> armed for the remaining delay
//
// The generation counter invalidates callbacks of timers that Stop() could
// not catch mid-flight.
func (e *Engine) rescheduleLocked(date localtime.Date) {
	e.gen++
	gen := e.gen
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}

	now := e.now()
	grace := time.Duration(e.schedule.GraceMinutes) * time.Minute
	armed := 0
	for _, slot := range e.schedule.Slots {
		fireAt, err := e.zone.At(date, slot.Time)
		if err != nil {
			// One malformed slot never aborts the rest of the day.
			e.log.Warn("skipping malformed reminder slot",
				logx.String("slot", slot.Key), logx.String("time", slot.Time), logx.Any("err", err))
			continue
		}
		delay := fireAt.Sub(now)
		if -delay > grace {
			e.log.Debug("slot window elapsed; not arming",
				logx.String("slot", slot.Key), logx.Time("fire_at", fireAt))
			continue
		}
		if delay < 0 {
			delay = 0
		}
		s := slot
		e.timers[slot.Key] = time.AfterFunc(delay, func() {
			e.fireSlot(gen, date, s)
		})
		armed++
	}
	e.log.Debug("slots rescheduled",
		logx.String("date", date.String()), logx.Int("armed", armed), logx.Int("configured", len(e.schedule.Slots)))
}

// fireSlot is the timer callback for one reminder slot. The persisted
// (date, slot key) flag makes the fire path idempotent even when a timer
// was armed twice or the clock jumped forward.
func (e *Engine) fireSlot(gen uint64, date localtime.Date, slot backend.ReminderSlot) {
	e.mu.Lock()
	if !e.running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	delete(e.timers, slot.Key)
	ctx := e.runCtx
	sink := e.sink
	remindersOn := e.settings.Reminders
	e.mu.Unlock()

	if !remindersOn {
		e.log.Debug("reminder suppressed by settings", logx.String("slot", slot.Key))
		return
	}

	key := storage.SlotFlagKey(date, slot.Key)
	fired, err := e.store.HasFlag(ctx, key)
	if err != nil {
		e.log.Warn("dedup read failed; reminder not fired", logx.String("key", key), logx.Any("err", err))
		return
	}
	if fired {
		e.log.Debug("reminder already fired today", logx.String("key", key))
		return
	}

	title := slot.Label
	if title == "" {
		title = "Reminder"
	}
	entry := notify.Entry{
		Title:   title,
		Message: fmt.Sprintf("Scheduled reminder (%s)", slot.Time),
		Kind:    notify.KindInfo,
	}
	if err := sink.Add(ctx, entry); err != nil {
		// Entry is in the in-memory log either way; still set the flag so a
		// flaky persist cannot double-remind.
		e.log.Warn("reminder entry persist failed", logx.String("slot", slot.Key), logx.Any("err", err))
	}
	if err := e.store.SetFlag(ctx, key); err != nil {
		e.log.Warn("dedup write failed", logx.String("key", key), logx.Any("err", err))
	}
	e.log.Info("reminder fired", logx.String("slot", slot.Key), logx.String("date", date.String()))
}
