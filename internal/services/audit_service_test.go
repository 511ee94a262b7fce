package services

import (
	"context"
	"testing"
	"time"

	"matchpulse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:audit_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AutomationLog{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestAuditService_LogEvent(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, nil)

	leagueID := uint(7)
	code := 200
	completed := time.Now().UTC()
	row, err := svc.LogEvent(context.Background(), &AuditEntry{
		TriggerType:       models.TriggerPreMatch,
		RunID:             "run-1",
		LeagueID:          &leagueID,
		FixtureIDs:        []uint{11, 12},
		WebhookURL:        "https://flows.example/pre",
		WebhookStatusCode: &code,
		Outcome:           models.OutcomeSuccess,
		Message:           "dispatched 2 fixture(s)",
		CompletedAt:       &completed,
		Details:           map[string]string{"webhook_response": "ok"},
	})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if row.ID == 0 {
		t.Fatalf("row not persisted")
	}
	if row.FixtureIDs != "[11,12]" || row.FixtureCount != 2 {
		t.Fatalf("fixture ids = %q count = %d", row.FixtureIDs, row.FixtureCount)
	}
	if row.TriggeredAt.IsZero() {
		t.Fatalf("TriggeredAt must default to now")
	}
	if row.Details != `{"webhook_response":"ok"}` {
		t.Fatalf("details = %q", row.Details)
	}

	if _, err := svc.LogEvent(context.Background(), nil); err == nil {
		t.Fatalf("nil entry must be rejected")
	}

	// League-count batches carry no fixture IDs; the explicit count wins
	// over len(FixtureIDs).
	liveRow, err := svc.LogEvent(context.Background(), &AuditEntry{
		TriggerType:  models.TriggerLive,
		RunID:        "run-1",
		LeagueID:     &leagueID,
		FixtureCount: 3,
		Outcome:      models.OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("LogEvent live: %v", err)
	}
	if liveRow.FixtureCount != 3 || liveRow.FixtureIDs != "[]" {
		t.Fatalf("live row count = %d ids = %q", liveRow.FixtureCount, liveRow.FixtureIDs)
	}
}

func TestAuditService_List(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, nil)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := svc.LogEvent(context.Background(), &AuditEntry{
			TriggerType: models.TriggerPreMatch,
			RunID:       "run-a",
			Outcome:     models.OutcomeSuccess,
			TriggeredAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
	if _, err := svc.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerLive,
		RunID:       "run-b",
		Outcome:     models.OutcomeError,
		TriggeredAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	rows, total, err := svc.List(context.Background(), &AuditLogListRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 || len(rows) != 4 {
		t.Fatalf("total = %d rows = %d", total, len(rows))
	}
	if rows[0].TriggerType != models.TriggerLive {
		t.Fatalf("rows must be newest first, got %s", rows[0].TriggerType)
	}

	rows, total, err = svc.List(context.Background(), &AuditLogListRequest{
		TriggerType: []string{models.TriggerPreMatch},
		Outcome:     []string{models.OutcomeSuccess},
	})
	if err != nil {
		t.Fatalf("filtered List: %v", err)
	}
	if total != 3 {
		t.Fatalf("filtered total = %d, want 3", total)
	}
	for _, row := range rows {
		if row.TriggerType != models.TriggerPreMatch {
			t.Fatalf("filter leaked trigger type %s", row.TriggerType)
		}
	}

	rows, total, err = svc.List(context.Background(), &AuditLogListRequest{RunID: "run-b"})
	if err != nil {
		t.Fatalf("run filter: %v", err)
	}
	if total != 1 || rows[0].RunID != "run-b" {
		t.Fatalf("run filter total = %d", total)
	}

	from := base.Add(30 * time.Minute)
	_, total, err = svc.List(context.Background(), &AuditLogListRequest{DateFrom: &from})
	if err != nil {
		t.Fatalf("date filter: %v", err)
	}
	if total != 1 {
		t.Fatalf("date filter total = %d, want 1", total)
	}

	// Paging clamps bad input.
	rows, _, err = svc.List(context.Background(), &AuditLogListRequest{Page: -1, PageSize: 1000})
	if err != nil {
		t.Fatalf("clamped List: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("clamped paging returned %d rows", len(rows))
	}
}

func TestAuditService_TriggeredFixtureIDs(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, nil)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	entries := []AuditEntry{
		{TriggerType: models.TriggerPreMatch, RunID: "r1", FixtureIDs: []uint{1, 2}, Outcome: models.OutcomeSuccess, TriggeredAt: now.Add(-time.Hour)},
		{TriggerType: models.TriggerPreMatch, RunID: "r2", FixtureIDs: []uint{3}, Outcome: models.OutcomeError, TriggeredAt: now.Add(-time.Hour)},
		{TriggerType: models.TriggerAnalysis, RunID: "r3", FixtureIDs: []uint{4}, Outcome: models.OutcomeSuccess, TriggeredAt: now.Add(-time.Hour)},
		{TriggerType: models.TriggerPreMatch, RunID: "r4", FixtureIDs: []uint{5}, Outcome: models.OutcomeSuccess, TriggeredAt: now.Add(-72 * time.Hour)},
	}
	for i := range entries {
		if _, err := svc.LogEvent(context.Background(), &entries[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	done, err := svc.TriggeredFixtureIDs(context.Background(), models.TriggerPreMatch, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("TriggeredFixtureIDs: %v", err)
	}
	if !done[1] || !done[2] {
		t.Fatalf("success fixtures missing: %v", done)
	}
	if done[3] {
		t.Fatalf("error rows must not mark fixtures done")
	}
	if done[4] {
		t.Fatalf("other trigger types must not bleed in")
	}
	if done[5] {
		t.Fatalf("rows older than the cutoff must be ignored")
	}
}

func TestAuditService_TriggeredLeagueIDs(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, nil)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	today := uint(7)
	yesterday := uint(8)
	failed := uint(9)
	seed := []AuditEntry{
		{TriggerType: models.TriggerLive, RunID: "r1", LeagueID: &today, Outcome: models.OutcomeSuccess, TriggeredAt: now.Add(-time.Hour)},
		{TriggerType: models.TriggerLive, RunID: "r2", LeagueID: &yesterday, Outcome: models.OutcomeSuccess, TriggeredAt: dayStart.Add(-time.Hour)},
		{TriggerType: models.TriggerLive, RunID: "r3", LeagueID: &failed, Outcome: models.OutcomeError, TriggeredAt: now.Add(-time.Hour)},
	}
	for i := range seed {
		if _, err := svc.LogEvent(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	done, err := svc.TriggeredLeagueIDs(context.Background(), models.TriggerLive, dayStart)
	if err != nil {
		t.Fatalf("TriggeredLeagueIDs: %v", err)
	}
	if !done[today] {
		t.Fatalf("today's success missing")
	}
	if done[yesterday] || done[failed] {
		t.Fatalf("stale or failed rows leaked: %v", done)
	}
}
