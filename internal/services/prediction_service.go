package services

import (
	"context"
	"errors"
	"fmt"

	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PredictionService stores the prediction and analysis records the workflow
// engine writes back after a dispatch.
type PredictionService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewPredictionService(db *gorm.DB, logger *logrus.Logger) *PredictionService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PredictionService{db: db, logger: logger}
}

type PredictionCreateRequest struct {
	FixtureID        uint    `json:"fixture_id" binding:"required"`
	Model            string  `json:"model" binding:"required"`
	PredictedOutcome string  `json:"predicted_outcome" binding:"required"`
	PredictedHome    *int    `json:"predicted_home"`
	PredictedAway    *int    `json:"predicted_away"`
	Confidence       float64 `json:"confidence"`
	Summary          string  `json:"summary"`
}

type PredictionListRequest struct {
	Page      int   `form:"page,default=1"`
	PageSize  int   `form:"page_size,default=20"`
	FixtureID *uint `form:"fixture_id"`
	LeagueID  *uint `form:"league_id"`
}

func (s *PredictionService) List(ctx context.Context, req *PredictionListRequest) ([]models.Prediction, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Prediction{})
	if req.FixtureID != nil {
		query = query.Where("fixture_id = ?", *req.FixtureID)
	}
	if req.LeagueID != nil {
		query = query.Where("fixture_id IN (SELECT id FROM fixtures WHERE league_id = ?)", *req.LeagueID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	var predictions []models.Prediction
	offset := (req.Page - 1) * req.PageSize
	err := query.
		Preload("Fixture").Preload("Fixture.HomeTeam").Preload("Fixture.AwayTeam").
		Order("created_at DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&predictions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list predictions: %w", err)
	}
	return predictions, total, nil
}

func (s *PredictionService) Create(ctx context.Context, req *PredictionCreateRequest) (*models.Prediction, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}

	var fixture models.Fixture
	if err := s.db.WithContext(ctx).First(&fixture, req.FixtureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}

	switch req.PredictedOutcome {
	case "home", "draw", "away":
	default:
		return nil, fmt.Errorf("unsupported predicted outcome: %s", req.PredictedOutcome)
	}

	prediction := &models.Prediction{
		FixtureID:        req.FixtureID,
		Model:            req.Model,
		PredictedOutcome: req.PredictedOutcome,
		PredictedHome:    req.PredictedHome,
		PredictedAway:    req.PredictedAway,
		Confidence:       req.Confidence,
		Summary:          req.Summary,
	}
	if err := s.db.WithContext(ctx).Create(prediction).Error; err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	return prediction, nil
}

// HasPrediction reports whether a fixture already has any stored prediction.
func (s *PredictionService) HasPrediction(ctx context.Context, fixtureID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).Where("fixture_id = ?", fixtureID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check prediction: %w", err)
	}
	return count > 0, nil
}

// CreateAnalysis stores the post-hoc analysis for a finished fixture; one
// analysis per fixture.
func (s *PredictionService) CreateAnalysis(ctx context.Context, fixtureID uint, model, content string) (*models.MatchAnalysis, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.MatchAnalysis{}).Where("fixture_id = ?", fixtureID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("failed to check analysis: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("analysis already exists for fixture %d", fixtureID)
	}

	analysis := &models.MatchAnalysis{
		FixtureID: fixtureID,
		Model:     model,
		Content:   content,
	}
	if err := s.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}
	return analysis, nil
}
