package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchpulse/internal/models"
	"matchpulse/pkg/sportsapi"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrFixtureNotFound = errors.New("fixture not found")

// FixtureService owns fixture reads and the ingestion writes that keep them
// fresh from the sports-data provider.
type FixtureService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewFixtureService(db *gorm.DB, logger *logrus.Logger) *FixtureService {
	if logger == nil {
		logger = logrus.New()
	}
	return &FixtureService{db: db, logger: logger}
}

type FixtureListRequest struct {
	Page     int        `form:"page,default=1"`
	PageSize int        `form:"page_size,default=20"`
	LeagueID *uint      `form:"league_id"`
	Status   []string   `form:"status"`
	DateFrom *time.Time `form:"date_from"`
	DateTo   *time.Time `form:"date_to"`
}

// List returns fixtures kickoff-ascending with league and team preloads.
func (s *FixtureService) List(ctx context.Context, req *FixtureListRequest) ([]models.Fixture, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Fixture{})
	if req.LeagueID != nil {
		query = query.Where("league_id = ?", *req.LeagueID)
	}
	if len(req.Status) > 0 {
		query = query.Where("status IN ?", req.Status)
	}
	if req.DateFrom != nil {
		query = query.Where("kickoff_at >= ?", *req.DateFrom)
	}
	if req.DateTo != nil {
		query = query.Where("kickoff_at <= ?", *req.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count fixtures: %w", err)
	}

	var fixtures []models.Fixture
	offset := (req.Page - 1) * req.PageSize
	err := query.
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		Order("kickoff_at").
		Offset(offset).Limit(req.PageSize).
		Find(&fixtures).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fixtures: %w", err)
	}
	return fixtures, total, nil
}

func (s *FixtureService) Get(ctx context.Context, id uint) (*models.Fixture, error) {
	var fixture models.Fixture
	err := s.db.WithContext(ctx).
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		First(&fixture, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	return &fixture, nil
}

// UpsertFromProvider stores or refreshes the provider's fixture list for one
// league, creating unknown teams on the way. Returns how many fixtures were
// written.
func (s *FixtureService) UpsertFromProvider(ctx context.Context, leagueID uint, apiFixtures []sportsapi.APIFixture) (int, error) {
	written := 0
	for _, af := range apiFixtures {
		homeID, err := s.ensureTeam(ctx, af.Home)
		if err != nil {
			return written, err
		}
		awayID, err := s.ensureTeam(ctx, af.Away)
		if err != nil {
			return written, err
		}

		var fixture models.Fixture
		err = s.db.WithContext(ctx).Where("external_id = ?", af.ID).First(&fixture).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fixture = models.Fixture{
				ExternalID: af.ID,
				LeagueID:   leagueID,
				HomeTeamID: homeID,
				AwayTeamID: awayID,
				KickoffAt:  af.KickoffAt,
				Venue:      af.Venue,
				Round:      af.Round,
				Status:     af.Status,
				HomeScore:  af.HomeScore,
				AwayScore:  af.AwayScore,
			}
			if err := s.db.WithContext(ctx).Create(&fixture).Error; err != nil {
				return written, fmt.Errorf("create fixture %d: %w", af.ID, err)
			}
		case err != nil:
			return written, fmt.Errorf("load fixture %d: %w", af.ID, err)
		default:
			updates := map[string]interface{}{
				"kickoff_at": af.KickoffAt,
				"venue":      af.Venue,
				"round":      af.Round,
				"status":     af.Status,
				"home_score": af.HomeScore,
				"away_score": af.AwayScore,
			}
			if err := s.db.WithContext(ctx).Model(&fixture).Updates(updates).Error; err != nil {
				return written, fmt.Errorf("update fixture %d: %w", af.ID, err)
			}
		}
		written++
	}
	return written, nil
}

// ApplyLiveUpdate merges one live provider row into the stored fixture.
// Returns the updated fixture and whether anything actually changed, so the
// caller can decide what to broadcast.
func (s *FixtureService) ApplyLiveUpdate(ctx context.Context, af sportsapi.APIFixture) (*models.Fixture, bool, error) {
	var fixture models.Fixture
	err := s.db.WithContext(ctx).Where("external_id = ?", af.ID).First(&fixture).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Not a tracked fixture; live refresh skips it silently.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load fixture %d: %w", af.ID, err)
	}

	changed := fixture.Status != af.Status ||
		!intPtrEqual(fixture.HomeScore, af.HomeScore) ||
		!intPtrEqual(fixture.AwayScore, af.AwayScore)
	if !changed {
		return &fixture, false, nil
	}

	updates := map[string]interface{}{
		"status":     af.Status,
		"home_score": af.HomeScore,
		"away_score": af.AwayScore,
	}
	wasFinished := fixture.IsFinished()
	fixture.Status = af.Status
	fixture.HomeScore = af.HomeScore
	fixture.AwayScore = af.AwayScore
	if !wasFinished && fixture.IsFinished() && fixture.FinishedAt == nil {
		now := time.Now().UTC()
		fixture.FinishedAt = &now
		updates["finished_at"] = now
	}

	if err := s.db.WithContext(ctx).Model(&models.Fixture{}).Where("id = ?", fixture.ID).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("apply live update %d: %w", af.ID, err)
	}
	return &fixture, true, nil
}

func (s *FixtureService) ensureTeam(ctx context.Context, at sportsapi.APITeam) (uint, error) {
	var team models.Team
	err := s.db.WithContext(ctx).Where("external_id = ?", at.ID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		team = models.Team{
			ExternalID: at.ID,
			Name:       at.Name,
			ShortName:  at.ShortName,
			LogoURL:    at.LogoURL,
		}
		if err := s.db.WithContext(ctx).Create(&team).Error; err != nil {
			return 0, fmt.Errorf("create team %d: %w", at.ID, err)
		}
		return team.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load team %d: %w", at.ID, err)
	}
	return team.ID, nil
}

// TeamIDsByExternal maps provider team identifiers to stored team ids.
func (s *FixtureService) TeamIDsByExternal(ctx context.Context) (map[int64]uint, error) {
	var teams []models.Team
	if err := s.db.WithContext(ctx).Select("id", "external_id").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	byExternal := make(map[int64]uint, len(teams))
	for _, team := range teams {
		byExternal[team.ExternalID] = team.ID
	}
	return byExternal, nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
