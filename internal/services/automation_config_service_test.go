package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"matchpulse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newConfigTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:autocfg_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AutomationConfig{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestAutomationConfigService_GetMissing(t *testing.T) {
	db := newConfigTestDB(t)
	svc := NewAutomationConfigService(db, nil)

	_, err := svc.Get(context.Background())
	if !errors.Is(err, ErrAutomationConfigNotFound) {
		t.Fatalf("err = %v, want ErrAutomationConfigNotFound", err)
	}
}

func TestAutomationConfigService_Ensure(t *testing.T) {
	db := newConfigTestDB(t)
	svc := NewAutomationConfigService(db, nil)

	cfg, err := svc.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !cfg.Enabled || cfg.PreMatchLeadMinutes != 30 || cfg.PredictionLeadMinutes != 15 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LastRunStatus != models.RunStatusUnset {
		t.Fatalf("fresh config run status = %s", cfg.LastRunStatus)
	}

	// Second call reuses the existing row.
	again, err := svc.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if again.ID != cfg.ID {
		t.Fatalf("Ensure created a second row")
	}
	var n int64
	db.Model(&models.AutomationConfig{}).Count(&n)
	if n != 1 {
		t.Fatalf("config rows = %d, want 1", n)
	}
}

func TestAutomationConfigService_UpdatePartial(t *testing.T) {
	db := newConfigTestDB(t)
	svc := NewAutomationConfigService(db, nil)
	if _, err := svc.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	disabled := false
	lead := 45
	cfg, err := svc.Update(context.Background(), &AutomationConfigUpdateRequest{
		LiveEnabled:         &disabled,
		PreMatchLeadMinutes: &lead,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cfg.LiveEnabled {
		t.Fatalf("LiveEnabled not updated")
	}
	if cfg.PreMatchLeadMinutes != 45 {
		t.Fatalf("PreMatchLeadMinutes = %d", cfg.PreMatchLeadMinutes)
	}
	// Untouched fields keep their values.
	if !cfg.Enabled || !cfg.PredictionEnabled || cfg.PredictionLeadMinutes != 15 {
		t.Fatalf("partial update touched unrelated fields: %+v", cfg)
	}
}

func TestAutomationConfigService_UpdateValidation(t *testing.T) {
	db := newConfigTestDB(t)
	svc := NewAutomationConfigService(db, nil)
	if _, err := svc.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	bad := 0
	if _, err := svc.Update(context.Background(), &AutomationConfigUpdateRequest{PreMatchLeadMinutes: &bad}); err == nil {
		t.Fatalf("zero lead minutes must be rejected")
	}
	negative := -1
	if _, err := svc.Update(context.Background(), &AutomationConfigUpdateRequest{PreMatchToleranceMinutes: &negative}); err == nil {
		t.Fatalf("negative tolerance must be rejected")
	}
	if _, err := svc.Update(context.Background(), &AutomationConfigUpdateRequest{AnalysisDelayHours: &negative}); err == nil {
		t.Fatalf("negative delay must be rejected")
	}
	if _, err := svc.Update(context.Background(), nil); err == nil {
		t.Fatalf("nil request must be rejected")
	}

	// A rejected update leaves the row untouched.
	cfg, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.PreMatchLeadMinutes != 30 {
		t.Fatalf("rejected update modified the row: %+v", cfg)
	}
}

func TestAutomationConfigService_RunMarkers(t *testing.T) {
	db := newConfigTestDB(t)
	svc := NewAutomationConfigService(db, nil)
	cfg, err := svc.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if err := svc.MarkRunning(context.Background(), cfg.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	cfg, _ = svc.Get(context.Background())
	if cfg.LastRunStatus != models.RunStatusRunning {
		t.Fatalf("status = %s, want running", cfg.LastRunStatus)
	}

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := svc.MarkFinished(context.Background(), cfg.ID, models.RunStatusSuccess, at); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	cfg, _ = svc.Get(context.Background())
	if cfg.LastRunStatus != models.RunStatusSuccess {
		t.Fatalf("status = %s, want success", cfg.LastRunStatus)
	}
	if cfg.LastRunAt == nil || !cfg.LastRunAt.Equal(at) {
		t.Fatalf("LastRunAt = %v, want %v", cfg.LastRunAt, at)
	}
}
