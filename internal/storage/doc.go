// Package storage persists the engine's process-wide state:
//   - Dedup flags (fired reminders and follow-up notifications)
//   - Per-owner group snapshots (last-observed assignment sets)
//   - The notification log and its read marker
//   - Notification category settings
package storage
