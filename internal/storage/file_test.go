package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "leadpulse/pkg/logx"
)

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := st.SetFlag(ctx, "slot|2026-08-31|am"); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	if err := st.PutGroups(ctx, "u1", map[string][]string{"b1||s1": {"1", "2"}}); err != nil {
		t.Fatalf("PutGroups: %v", err)
	}
	logState := LogState{
		Entries:    []LogEntry{{ID: "n1", Title: "Reminder", At: time.Now().UTC(), Kind: "info"}},
		LastReadAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := st.PutLog(ctx, "u1", logState); err != nil {
		t.Fatalf("PutLog: %v", err)
	}
	if err := st.PutSettings(ctx, "u1", Settings{Reminders: true}); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	ok, err := st.HasFlag(ctx, "slot|2026-08-31|am")
	if err != nil || !ok {
		t.Fatalf("HasFlag after reopen = %v, %v", ok, err)
	}
	if ok, _ := st.HasFlag(ctx, "slot|2026-08-31|pm"); ok {
		t.Fatal("unexpected flag present")
	}

	groups, ok, err := st.GetGroups(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("GetGroups = %v, %v", ok, err)
	}
	if len(groups["b1||s1"]) != 2 {
		t.Fatalf("unexpected group contents: %v", groups)
	}

	got, ok, err := st.GetLog(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("GetLog = %v, %v", ok, err)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID != "n1" {
		t.Fatalf("unexpected log entries: %+v", got.Entries)
	}
	if got.LastReadAt.IsZero() {
		t.Fatal("LastReadAt not persisted")
	}

	set, ok, err := st.GetSettings(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("GetSettings = %v, %v", ok, err)
	}
	if !set.Reminders || set.Assignments {
		t.Fatalf("unexpected settings: %+v", set)
	}
}

func TestMemoryStoreGroupsReplacedWholesale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemory()

	if err := st.PutGroups(ctx, "u1", map[string][]string{"a": {"1"}, "b": {"2"}}); err != nil {
		t.Fatalf("PutGroups: %v", err)
	}
	if err := st.PutGroups(ctx, "u1", map[string][]string{"a": {"1", "3"}}); err != nil {
		t.Fatalf("PutGroups: %v", err)
	}
	groups, ok, err := st.GetGroups(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("GetGroups = %v, %v", ok, err)
	}
	if _, stale := groups["b"]; stale {
		t.Fatal("replaced snapshot still contains removed group")
	}
	if len(groups["a"]) != 2 {
		t.Fatalf("unexpected snapshot: %v", groups)
	}
}

func TestFlagKeysAreNamespaced(t *testing.T) {
	t.Parallel()
	if got := SlotFlagKey(dateStr("2026-08-31"), "am"); got != "slot|2026-08-31|am" {
		t.Fatalf("SlotFlagKey = %q", got)
	}
	got := FollowUpFlagKey("u1", "b1", "s1", "L9", 2, "2026-08-31T09:00:00Z")
	want := "followup|u1|b1|s1|L9|2|2026-08-31T09:00:00Z"
	if got != want {
		t.Fatalf("FollowUpFlagKey = %q, want %q", got, want)
	}
}

type dateStr string

func (d dateStr) String() string { return string(d) }
