package services

import (
	"context"
	"errors"
	"fmt"

	"matchpulse/internal/models"
	"matchpulse/pkg/sportsapi"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrLeagueNotFound = errors.New("league not found")

type LeagueService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewLeagueService(db *gorm.DB, logger *logrus.Logger) *LeagueService {
	if logger == nil {
		logger = logrus.New()
	}
	return &LeagueService{db: db, logger: logger}
}

type LeagueCreateRequest struct {
	ExternalID int64  `json:"external_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Country    string `json:"country"`
	Season     string `json:"season"`
	LogoURL    string `json:"logo_url"`
	Active     *bool  `json:"active"`
}

type LeagueUpdateRequest struct {
	Name    *string `json:"name"`
	Country *string `json:"country"`
	Season  *string `json:"season"`
	LogoURL *string `json:"logo_url"`
	Active  *bool   `json:"active"`
}

// List returns leagues, optionally only active ones.
func (s *LeagueService) List(ctx context.Context, activeOnly bool) ([]models.League, error) {
	query := s.db.WithContext(ctx).Model(&models.League{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var leagues []models.League
	if err := query.Order("name").Find(&leagues).Error; err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	return leagues, nil
}

func (s *LeagueService) Get(ctx context.Context, id uint) (*models.League, error) {
	var league models.League
	if err := s.db.WithContext(ctx).First(&league, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to load league: %w", err)
	}
	return &league, nil
}

func (s *LeagueService) Create(ctx context.Context, req *LeagueCreateRequest) (*models.League, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.League{}).Where("external_id = ?", req.ExternalID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("failed to check league: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("league already tracked")
	}

	league := &models.League{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Country:    req.Country,
		Season:     req.Season,
		LogoURL:    req.LogoURL,
		Active:     req.Active == nil || *req.Active,
	}
	if err := s.db.WithContext(ctx).Create(league).Error; err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}
	return league, nil
}

func (s *LeagueService) Update(ctx context.Context, id uint, req *LeagueUpdateRequest) (*models.League, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}

	league, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		league.Name = *req.Name
	}
	if req.Country != nil {
		league.Country = *req.Country
	}
	if req.Season != nil {
		league.Season = *req.Season
	}
	if req.LogoURL != nil {
		league.LogoURL = *req.LogoURL
	}
	if req.Active != nil {
		league.Active = *req.Active
	}

	if err := s.db.WithContext(ctx).Save(league).Error; err != nil {
		return nil, fmt.Errorf("failed to update league: %w", err)
	}
	return league, nil
}

func (s *LeagueService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.League{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete league: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLeagueNotFound
	}
	return nil
}

// Standings returns the stored table for one league, position-ascending.
func (s *LeagueService) Standings(ctx context.Context, leagueID uint) ([]models.Standing, error) {
	if _, err := s.Get(ctx, leagueID); err != nil {
		return nil, err
	}
	var standings []models.Standing
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("league_id = ?", leagueID).
		Order("position").
		Find(&standings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load standings: %w", err)
	}
	return standings, nil
}

// UpsertStandings replaces one league's table with the provider's rows.
func (s *LeagueService) UpsertStandings(ctx context.Context, leagueID uint, rows []sportsapi.APIStanding, teamIDByExternal map[int64]uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("league_id = ?", leagueID).Delete(&models.Standing{}).Error; err != nil {
			return fmt.Errorf("clear standings: %w", err)
		}
		for _, row := range rows {
			teamID, ok := teamIDByExternal[row.TeamID]
			if !ok {
				s.logger.Warnf("standings: unknown team %d in league %d, skipping", row.TeamID, leagueID)
				continue
			}
			standing := models.Standing{
				LeagueID:       leagueID,
				TeamID:         teamID,
				Position:       row.Position,
				Played:         row.Played,
				Won:            row.Won,
				Draw:           row.Draw,
				Lost:           row.Lost,
				GoalsFor:       row.GoalsFor,
				GoalsAgainst:   row.GoalsAgainst,
				GoalDifference: row.GoalDifference,
				Points:         row.Points,
				Form:           row.Form,
			}
			if err := tx.Create(&standing).Error; err != nil {
				return fmt.Errorf("insert standing: %w", err)
			}
		}
		return nil
	})
}
