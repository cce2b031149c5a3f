package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + flag journal)
//   - "sqlite": SQLite database file
//   - "memory": volatile in-process store (tests, dry runs)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// LogEntry is one persisted notification.
// Keep it compact and schema-stable.
type LogEntry struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
}

// LogState is the per-owner notification log plus its read marker.
type LogState struct {
	Entries    []LogEntry `json:"entries"`
	LastReadAt time.Time  `json:"last_read_at"`
}

// Settings are the per-owner notification category toggles.
type Settings struct {
	Reminders   bool `json:"reminders"`
	Assignments bool `json:"assignments"`
	FollowUps   bool `json:"followups"`
}

// DefaultSettings enables every category.
func DefaultSettings() Settings {
	return Settings{Reminders: true, Assignments: true, FollowUps: true}
}

// ---- Flag key scheme ----
//
// Dedup flags are write-once: the engine sets them the first time a
// notification key fires and never clears them. One namespace per record
// type keeps keys collision-free and greppable.

// SlotFlagKey marks a daily reminder slot as fired for a local date.
func SlotFlagKey(localDate fmt.Stringer, slotKey string) string {
	return "slot|" + localDate.String() + "|" + slotKey
}

// FollowUpFlagKey marks a follow-up due event by its natural key.
func FollowUpFlagKey(ownerID, batch, sheet, leadID string, seq int, dueAt string) string {
	return strings.Join([]string{"followup", ownerID, batch, sheet, leadID, fmt.Sprint(seq), dueAt}, "|")
}
