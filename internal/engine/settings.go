package engine

import (
	"context"
	"fmt"

	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

// Notification categories accepted by SetSetting.
const (
	CategoryReminders   = "reminders"
	CategoryAssignments = "assignments"
	CategoryFollowUps   = "followups"
)

// Settings returns the current category toggles.
func (e *Engine) Settings() storage.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetSetting flips one notification category and persists the result. The
// change applies to the next fire or poll immediately; no restart needed.
// A no-op while the engine is not running.
func (e *Engine) SetSetting(ctx context.Context, category string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		e.log.Debug("setting change ignored; engine not running", logx.String("category", category))
		return nil
	}

	st := e.settings
	switch category {
	case CategoryReminders:
		st.Reminders = enabled
	case CategoryAssignments:
		st.Assignments = enabled
	case CategoryFollowUps:
		st.FollowUps = enabled
	default:
		return fmt.Errorf("unknown notification category %q", category)
	}
	if st == e.settings {
		return nil
	}
	e.settings = st

	if err := e.store.PutSettings(ctx, e.principal.ID, st); err != nil {
		// The in-memory toggle already applied; persistence catches up on the
		// next successful change.
		e.log.Warn("settings persist failed", logx.String("category", category), logx.Any("err", err))
		return err
	}
	e.log.Info("notification setting changed", logx.String("category", category), logx.Bool("enabled", enabled))
	return nil
}

// ApplySettings replaces the whole toggle set at once (used by the config
// watcher when the file changes on disk).
func (e *Engine) ApplySettings(ctx context.Context, st storage.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	if st == e.settings {
		return nil
	}
	e.settings = st
	if err := e.store.PutSettings(ctx, e.principal.ID, st); err != nil {
		e.log.Warn("settings persist failed", logx.Any("err", err))
		return err
	}
	e.log.Info("notification settings replaced",
		logx.Bool("reminders", st.Reminders),
		logx.Bool("assignments", st.Assignments),
		logx.Bool("followups", st.FollowUps))
	return nil
}
