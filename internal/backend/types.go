package backend

import (
	"context"
	"strings"
)

// Role of an authenticated principal, as reported by the auth collaborator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Principal is the authenticated actor the engine runs on behalf of.
// The engine treats it as opaque input; only Role gates behavior.
type Principal struct {
	ID   string
	Name string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// ReminderSlot is one configured time-of-day reminder.
// Key is stable across days and is used for dedup; Time is "HH:MM" local.
type ReminderSlot struct {
	Key   string `json:"key"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

// ScheduleCfg holds the reminder slot definitions for a principal.
// It is fetched at engine start and at every day boundary; the engine
// never mutates it.
type ScheduleCfg struct {
	Slots        []ReminderSlot `json:"slots"`
	GraceMinutes int            `json:"grace_minutes"`
}

// AssignedItem is one lead currently assigned to the principal.
type AssignedItem struct {
	ID    string `json:"id"`
	Batch string `json:"batch"`
	Sheet string `json:"sheet"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// GroupKey identifies the (batch, sheet) group an item belongs to.
func (a AssignedItem) GroupKey() string { return a.Batch + "||" + a.Sheet }

// SplitGroupKey is the inverse of GroupKey; missing parts come back empty.
func SplitGroupKey(key string) (batch, sheet string) {
	batch, sheet, _ = strings.Cut(key, "||")
	return batch, sheet
}

// FollowUp is a due follow-up event with its natural identity.
type FollowUp struct {
	OwnerID     string `json:"owner_id"`
	Batch       string `json:"batch"`
	Sheet       string `json:"sheet"`
	LeadID      string `json:"lead_id"`
	Seq         int    `json:"seq"`
	DueAt       string `json:"due_at"` // RFC 3339, server clock
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone,omitempty"`
}

// FollowUpBatch is the follow-up poll response. ServerNow is the backend's
// clock at response time; due comparisons use it instead of the client
// clock so skew cannot fire events early or late.
type FollowUpBatch struct {
	ServerNow string     `json:"server_now"` // RFC 3339
	Overdue   []FollowUp `json:"overdue"`
	Upcoming  []FollowUp `json:"upcoming"`
}

// Client is the read-only contract against the hosted dashboard backend.
// All calls are bounded by the caller's context.
type Client interface {
	ScheduleConfig(ctx context.Context, p Principal) (ScheduleCfg, error)
	AssignedItems(ctx context.Context, p Principal) ([]AssignedItem, error)
	FollowUps(ctx context.Context, p Principal) (FollowUpBatch, error)
}
