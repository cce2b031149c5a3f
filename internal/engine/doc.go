// Package engine implements the reminder scheduler and change-detection
// notification engine.
//
// # Overview
//
// The engine runs on behalf of exactly one authenticated principal. It
// arms one-shot timers for the day's configured reminder slots (with a
// catch-up grace window), polls the backend for newly assigned leads and
// due follow-ups, and records every detected event in the notification
// log, which forwards to the external alert channel best-effort.
//
// # Idempotence
//
// Every notification key — (local date, slot key) for reminders, the
// natural event key for follow-ups — is guarded by a persisted dedup flag,
// so a fired notification never repeats across re-arms, fast-forwarded
// clocks or process restarts on the same store.
//
// # Lifecycle
//
// Start is idempotent and a complete no-op for administrator principals.
// Stop cancels all armed timers and triggers and is safe from any context.
// Reschedule re-pulls the slot configuration and re-arms today without
// waiting for the midnight rollover.
package engine
