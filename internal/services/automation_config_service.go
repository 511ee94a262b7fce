package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrAutomationConfigNotFound is fatal for an orchestrator run: without the
// config row no phase may be evaluated and no defaults are guessed.
var ErrAutomationConfigNotFound = errors.New("automation config not found")

// AutomationConfigService manages the singleton automation config row.
// Enable flags and thresholds are written by the admin surface; the
// run-status fields only by the orchestrator.
type AutomationConfigService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAutomationConfigService(db *gorm.DB, logger *logrus.Logger) *AutomationConfigService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationConfigService{db: db, logger: logger}
}

// Get loads the singleton row.
func (s *AutomationConfigService) Get(ctx context.Context) (*models.AutomationConfig, error) {
	var cfg models.AutomationConfig
	if err := s.db.WithContext(ctx).Order("id").First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAutomationConfigNotFound
		}
		return nil, fmt.Errorf("load automation config: %w", err)
	}
	return &cfg, nil
}

// Ensure creates the row with model defaults when it does not exist yet.
// Used by the migrator; never called on the run path.
func (s *AutomationConfigService) Ensure(ctx context.Context) (*models.AutomationConfig, error) {
	cfg, err := s.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrAutomationConfigNotFound) {
		return nil, err
	}

	fresh := models.DefaultAutomationConfig()
	if err := s.db.WithContext(ctx).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create automation config: %w", err)
	}
	s.logger.Info("automation config seeded with defaults")
	return &fresh, nil
}

// AutomationConfigUpdateRequest is a partial update; nil fields are left
// untouched so concurrent readers never observe unrelated fields torn.
type AutomationConfigUpdateRequest struct {
	Enabled *bool `json:"enabled"`

	PreMatchEnabled   *bool `json:"pre_match_enabled"`
	PredictionEnabled *bool `json:"prediction_enabled"`
	LiveEnabled       *bool `json:"live_enabled"`
	PostMatchEnabled  *bool `json:"post_match_enabled"`
	AnalysisEnabled   *bool `json:"analysis_enabled"`

	PreMatchLeadMinutes        *int `json:"pre_match_lead_minutes"`
	PreMatchToleranceMinutes   *int `json:"pre_match_tolerance_minutes"`
	PredictionLeadMinutes      *int `json:"prediction_lead_minutes"`
	PredictionToleranceMinutes *int `json:"prediction_tolerance_minutes"`
	PostMatchDelayHours        *int `json:"post_match_delay_hours"`
	AnalysisDelayHours         *int `json:"analysis_delay_hours"`
}

// Update merges the non-nil fields into the singleton row.
func (s *AutomationConfigService) Update(ctx context.Context, req *AutomationConfigUpdateRequest) (*models.AutomationConfig, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}

	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.PreMatchEnabled != nil {
		updates["pre_match_enabled"] = *req.PreMatchEnabled
	}
	if req.PredictionEnabled != nil {
		updates["prediction_enabled"] = *req.PredictionEnabled
	}
	if req.LiveEnabled != nil {
		updates["live_enabled"] = *req.LiveEnabled
	}
	if req.PostMatchEnabled != nil {
		updates["post_match_enabled"] = *req.PostMatchEnabled
	}
	if req.AnalysisEnabled != nil {
		updates["analysis_enabled"] = *req.AnalysisEnabled
	}
	if req.PreMatchLeadMinutes != nil {
		if *req.PreMatchLeadMinutes < 1 {
			return nil, fmt.Errorf("pre_match_lead_minutes must be positive")
		}
		updates["pre_match_lead_minutes"] = *req.PreMatchLeadMinutes
	}
	if req.PreMatchToleranceMinutes != nil {
		if *req.PreMatchToleranceMinutes < 0 {
			return nil, fmt.Errorf("pre_match_tolerance_minutes must not be negative")
		}
		updates["pre_match_tolerance_minutes"] = *req.PreMatchToleranceMinutes
	}
	if req.PredictionLeadMinutes != nil {
		if *req.PredictionLeadMinutes < 1 {
			return nil, fmt.Errorf("prediction_lead_minutes must be positive")
		}
		updates["prediction_lead_minutes"] = *req.PredictionLeadMinutes
	}
	if req.PredictionToleranceMinutes != nil {
		if *req.PredictionToleranceMinutes < 0 {
			return nil, fmt.Errorf("prediction_tolerance_minutes must not be negative")
		}
		updates["prediction_tolerance_minutes"] = *req.PredictionToleranceMinutes
	}
	if req.PostMatchDelayHours != nil {
		if *req.PostMatchDelayHours < 0 {
			return nil, fmt.Errorf("post_match_delay_hours must not be negative")
		}
		updates["post_match_delay_hours"] = *req.PostMatchDelayHours
	}
	if req.AnalysisDelayHours != nil {
		if *req.AnalysisDelayHours < 0 {
			return nil, fmt.Errorf("analysis_delay_hours must not be negative")
		}
		updates["analysis_delay_hours"] = *req.AnalysisDelayHours
	}

	if len(updates) == 0 {
		return cfg, nil
	}

	if err := s.db.WithContext(ctx).Model(cfg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update automation config: %w", err)
	}
	return s.Get(ctx)
}

// MarkRunning stamps the run-in-progress marker. Best-effort lock: the
// orchestrator refuses to start while a fresh marker exists.
func (s *AutomationConfigService) MarkRunning(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).
		Model(&models.AutomationConfig{}).
		Where("id = ?", id).
		Update("last_run_status", models.RunStatusRunning).Error
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return nil
}

// MarkFinished records the terminal run status and the run timestamp.
// Last write wins; no transaction needed beyond the single UPDATE.
func (s *AutomationConfigService) MarkFinished(ctx context.Context, id uint, status string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.AutomationConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_status": status,
			"last_run_at":     at,
		}).Error
	if err != nil {
		return fmt.Errorf("mark run finished: %w", err)
	}
	return nil
}
