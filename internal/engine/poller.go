package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadpulse/internal/backend"
	"leadpulse/internal/notify"
	"leadpulse/internal/storage"
	logx "leadpulse/pkg/logx"
)

// pollTick runs one poll cycle: assignments first, then follow-ups. The two
// sub-polls are isolated — a failure in one never blocks the other — and
// pollMu keeps whole cycles from interleaving when the backend is slow.
func (e *Engine) pollTick(ctx context.Context) error {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	p := e.principal
	sink := e.sink
	settings := e.settings
	e.mu.Unlock()

	if err := e.pollAssignments(ctx, p, sink, settings); err != nil {
		e.log.Warn("assignment poll failed", logx.Any("err", err))
	}
	if err := e.pollFollowUps(ctx, p, sink, settings); err != nil {
		e.log.Warn("follow-up poll failed", logx.Any("err", err))
	}
	return nil
}

// pollAssignments fetches the currently assigned items, diffs them against
// the persisted per-group snapshot and emits one aggregated notification per
// group that grew. The snapshot is replaced only after the notifications are
// emitted, so a crash in between re-detects rather than loses additions.
func (e *Engine) pollAssignments(ctx context.Context, p backend.Principal, sink *notify.Log, settings storage.Settings) error {
	if !settings.Assignments {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	items, err := e.be.AssignedItems(fctx, p)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch assigned items: %w", err)
	}

	cur := map[string][]string{}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		key := it.GroupKey()
		cur[key] = append(cur[key], it.ID)
	}

	prev, ok, err := e.store.GetGroups(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load group snapshot: %w", err)
	}
	if !ok {
		// First poll on this store: baseline silently, no notifications for
		// items that were assigned before we started watching.
		if err := e.store.PutGroups(ctx, p.ID, cur); err != nil {
			return fmt.Errorf("persist baseline snapshot: %w", err)
		}
		e.log.Info("assignment snapshot baselined", logx.Int("groups", len(cur)))
		return nil
	}

	added := diffGroups(prev, cur)
	if len(added) > 0 {
		keys := make([]string, 0, len(added))
		for k := range added {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			batch, sheet := backend.SplitGroupKey(key)
			n := len(added[key])
			entry := notify.Entry{
				Title:   "New leads assigned",
				Message: fmt.Sprintf("%d item(s) added — %s/%s", n, batch, sheet),
				Kind:    notify.KindSuccess,
			}
			if err := sink.Add(ctx, entry); err != nil {
				e.log.Warn("assignment entry persist failed", logx.String("group", key), logx.Any("err", err))
			}
			e.log.Info("assignments detected", logx.String("group", key), logx.Int("added", n))
		}
	}

	if err := e.store.PutGroups(ctx, p.ID, cur); err != nil {
		return fmt.Errorf("persist group snapshot: %w", err)
	}
	return nil
}

// pollFollowUps fetches due follow-up events and notifies once per event.
// Due comparisons use the server-reported clock, and each event's natural
// key is flagged after its notification so it never repeats.
func (e *Engine) pollFollowUps(ctx context.Context, p backend.Principal, sink *notify.Log, settings storage.Settings) error {
	if !settings.FollowUps {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	batch, err := e.be.FollowUps(fctx, p)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch follow-ups: %w", err)
	}

	serverNow, err := time.Parse(time.RFC3339, batch.ServerNow)
	if err != nil {
		return fmt.Errorf("parse server_now %q: %w", batch.ServerNow, err)
	}

	all := make([]backend.FollowUp, 0, len(batch.Overdue)+len(batch.Upcoming))
	all = append(all, batch.Overdue...)
	all = append(all, batch.Upcoming...)
	for _, fu := range all {
		due, err := time.Parse(time.RFC3339, fu.DueAt)
		if err != nil {
			e.log.Warn("skipping follow-up with bad due time",
				logx.String("lead", fu.LeadID), logx.String("due_at", fu.DueAt), logx.Any("err", err))
			continue
		}
		if due.After(serverNow) {
			continue
		}
		key := storage.FollowUpFlagKey(fu.OwnerID, fu.Batch, fu.Sheet, fu.LeadID, fu.Seq, fu.DueAt)
		seen, err := e.store.HasFlag(ctx, key)
		if err != nil {
			e.log.Warn("dedup read failed; follow-up deferred", logx.String("key", key), logx.Any("err", err))
			continue
		}
		if seen {
			continue
		}

		name := fu.DisplayName
		if name == "" {
			name = fu.LeadID
		}
		entry := notify.Entry{
			Title:   "Follow-up due",
			Message: fmt.Sprintf("%s — %s/%s", name, fu.Batch, fu.Sheet),
			Kind:    notify.KindWarning,
		}
		if err := sink.Add(ctx, entry); err != nil {
			e.log.Warn("follow-up entry persist failed", logx.String("key", key), logx.Any("err", err))
		}
		if err := e.store.SetFlag(ctx, key); err != nil {
			e.log.Warn("dedup write failed", logx.String("key", key), logx.Any("err", err))
		}
		e.log.Info("follow-up due", logx.String("lead", fu.LeadID), logx.String("due_at", fu.DueAt))
	}
	return nil
}
