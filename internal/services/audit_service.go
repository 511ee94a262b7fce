package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditService owns the append-only automation log. Every dispatch decision
// lands here exactly once; success rows are what the window queries consult
// to avoid re-dispatching.
type AuditService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAuditService(db *gorm.DB, logger *logrus.Logger) *AuditService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuditService{db: db, logger: logger}
}

// AuditEntry is the caller-facing shape for LogEvent.
type AuditEntry struct {
	TriggerType string
	RunID       string
	LeagueID    *uint
	FixtureIDs  []uint
	// FixtureCount overrides len(FixtureIDs) when set. League-count batches
	// (live) carry no fixture IDs but still cover N in-play fixtures.
	FixtureCount      int
	WebhookURL        string
	WebhookStatusCode *int
	WebhookDurationMs *int64
	Outcome           string
	Message           string
	ErrorMessage      string
	TriggeredAt       time.Time
	CompletedAt       *time.Time
	Details           interface{}
}

// LogEvent appends one audit row. Rows are never updated afterwards.
func (s *AuditService) LogEvent(ctx context.Context, e *AuditEntry) (*models.AutomationLog, error) {
	if e == nil {
		return nil, fmt.Errorf("entry required")
	}
	if e.TriggeredAt.IsZero() {
		e.TriggeredAt = time.Now().UTC()
	}

	count := len(e.FixtureIDs)
	if e.FixtureCount > 0 {
		count = e.FixtureCount
	}

	row := &models.AutomationLog{
		TriggerType:       e.TriggerType,
		RunID:             e.RunID,
		LeagueID:          e.LeagueID,
		FixtureIDs:        encodeFixtureIDs(e.FixtureIDs),
		FixtureCount:      count,
		WebhookURL:        e.WebhookURL,
		WebhookStatusCode: e.WebhookStatusCode,
		WebhookDurationMs: e.WebhookDurationMs,
		Outcome:           e.Outcome,
		Message:           e.Message,
		ErrorMessage:      e.ErrorMessage,
		TriggeredAt:       e.TriggeredAt,
		CompletedAt:       e.CompletedAt,
	}
	if e.Details != nil {
		if raw, err := json.Marshal(e.Details); err == nil {
			row.Details = string(raw)
		}
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Warnf("audit: append log entry failed: %v", err)
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return row, nil
}

// LogNoAction records that a phase window was evaluated and found empty.
func (s *AuditService) LogNoAction(ctx context.Context, runID, triggerType string, triggeredAt time.Time) error {
	completed := time.Now().UTC()
	_, err := s.LogEvent(ctx, &AuditEntry{
		TriggerType: triggerType,
		RunID:       runID,
		Outcome:     models.OutcomeNoAction,
		Message:     "no candidates in window",
		TriggeredAt: triggeredAt,
		CompletedAt: &completed,
	})
	return err
}

// AuditLogListRequest filters the operational log query surface.
type AuditLogListRequest struct {
	Page        int        `form:"page,default=1"`
	PageSize    int        `form:"page_size,default=20"`
	TriggerType []string   `form:"trigger_type"`
	Outcome     []string   `form:"outcome"`
	RunID       string     `form:"run_id"`
	DateFrom    *time.Time `form:"date_from"`
	DateTo      *time.Time `form:"date_to"`
}

// List returns audit rows newest first.
func (s *AuditService) List(ctx context.Context, req *AuditLogListRequest) ([]models.AutomationLog, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.AutomationLog{})
	if len(req.TriggerType) > 0 {
		query = query.Where("trigger_type IN ?", req.TriggerType)
	}
	if len(req.Outcome) > 0 {
		query = query.Where("outcome IN ?", req.Outcome)
	}
	if req.RunID != "" {
		query = query.Where("run_id = ?", req.RunID)
	}
	if req.DateFrom != nil {
		query = query.Where("triggered_at >= ?", *req.DateFrom)
	}
	if req.DateTo != nil {
		query = query.Where("triggered_at <= ?", *req.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	var rows []models.AutomationLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("triggered_at DESC").Offset(offset).Limit(req.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return rows, total, nil
}

// TriggeredFixtureIDs returns the fixtures that already have a success row
// for the given trigger type since the cutoff. The window queries subtract
// this set so a fixture straddling two invocations is dispatched once.
func (s *AuditService) TriggeredFixtureIDs(ctx context.Context, triggerType string, since time.Time) (map[uint]bool, error) {
	var rows []models.AutomationLog
	err := s.db.WithContext(ctx).
		Select("fixture_ids").
		Where("trigger_type = ? AND outcome = ? AND triggered_at >= ?", triggerType, models.OutcomeSuccess, since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load triggered fixtures: %w", err)
	}

	done := make(map[uint]bool)
	for _, row := range rows {
		for _, id := range decodeFixtureIDs(row.FixtureIDs) {
			done[id] = true
		}
	}
	return done, nil
}

// TriggeredLeagueIDs is the league-scoped equivalent, keyed per calendar day:
// the cutoff is expected to be the UTC start of the day being evaluated.
func (s *AuditService) TriggeredLeagueIDs(ctx context.Context, triggerType string, since time.Time) (map[uint]bool, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.AutomationLog{}).
		Where("trigger_type = ? AND outcome = ? AND league_id IS NOT NULL AND triggered_at >= ?", triggerType, models.OutcomeSuccess, since).
		Pluck("league_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load triggered leagues: %w", err)
	}

	done := make(map[uint]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

func encodeFixtureIDs(ids []uint) string {
	if len(ids) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeFixtureIDs(raw string) []uint {
	if raw == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}
