package services

import (
	"context"
	"fmt"
	"time"

	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// postMatchTolerance widens the post-match kickoff window on its far edge so
// a slow scheduler tick cannot skip over it entirely.
const postMatchTolerance = 30 * time.Minute

// LeagueCandidates groups eligible fixtures under their league; it is the
// batching unit for the league-scoped dispatches.
type LeagueCandidates struct {
	League   models.League
	Fixtures []models.Fixture
}

// LiveLeague is a league with at least one fixture currently in play.
type LiveLeague struct {
	League    models.League
	LiveCount int
}

// WindowService answers, per phase, "which fixtures/leagues are eligible
// right now". Every query is read-only and parameterized by now and the
// config thresholds, and every query subtracts the units that already carry
// a success audit row for the phase. The time windows alone are only an
// approximation; the audit-log exclusion is what makes re-runs safe.
type WindowService struct {
	db       *gorm.DB
	audit    *AuditService
	lookback time.Duration
	logger   *logrus.Logger
	tracer   trace.Tracer
}

func NewWindowService(db *gorm.DB, audit *AuditService, lookback time.Duration, logger *logrus.Logger) *WindowService {
	if logger == nil {
		logger = logrus.New()
	}
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	return &WindowService{
		db:       db,
		audit:    audit,
		lookback: lookback,
		logger:   logger,
		tracer:   otel.Tracer("matchpulse.window"),
	}
}

// PreMatchCandidates returns not-started fixtures in active leagues whose
// kickoff falls inside [now+(lead-tol), now+(lead+tol)], both edges
// inclusive, grouped by league.
func (s *WindowService) PreMatchCandidates(ctx context.Context, now time.Time, cfg *models.AutomationConfig) ([]LeagueCandidates, error) {
	ctx, span := s.tracer.Start(ctx, "window.pre_match")
	defer span.End()

	lead := time.Duration(cfg.PreMatchLeadMinutes) * time.Minute
	tol := time.Duration(cfg.PreMatchToleranceMinutes) * time.Minute
	lo := now.Add(lead - tol)
	hi := now.Add(lead + tol)

	fixtures, err := s.upcomingFixtures(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("pre-match window query: %w", err)
	}

	fixtures, err = s.excludeTriggered(ctx, models.TriggerPreMatch, now, fixtures)
	if err != nil {
		return nil, err
	}

	groups := groupByLeague(fixtures)
	span.SetAttributes(attribute.Int("window.leagues", len(groups)), attribute.Int("window.fixtures", len(fixtures)))
	return groups, nil
}

// PredictionCandidates returns not-started fixtures inside the narrower
// prediction window that have no stored prediction yet.
func (s *WindowService) PredictionCandidates(ctx context.Context, now time.Time, cfg *models.AutomationConfig) ([]models.Fixture, error) {
	lead := time.Duration(cfg.PredictionLeadMinutes) * time.Minute
	tol := time.Duration(cfg.PredictionToleranceMinutes) * time.Minute
	lo := now.Add(lead - tol)
	hi := now.Add(lead + tol)

	var fixtures []models.Fixture
	err := s.db.WithContext(ctx).
		Joins("JOIN leagues ON leagues.id = fixtures.league_id AND leagues.active = ?", true).
		Where("fixtures.status = ?", models.FixtureStatusNotStarted).
		Where("fixtures.kickoff_at >= ? AND fixtures.kickoff_at <= ?", lo, hi).
		Where("NOT EXISTS (SELECT 1 FROM predictions WHERE predictions.fixture_id = fixtures.id)").
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		Order("fixtures.kickoff_at").
		Find(&fixtures).Error
	if err != nil {
		return nil, fmt.Errorf("prediction window query: %w", err)
	}

	return s.excludeTriggered(ctx, models.TriggerPrediction, now, fixtures)
}

// LiveLeagues returns active leagues with at least one in-play fixture,
// as per-league counts. Leagues already live-triggered today (UTC) are
// excluded.
func (s *WindowService) LiveLeagues(ctx context.Context, now time.Time) ([]LiveLeague, error) {
	ctx, span := s.tracer.Start(ctx, "window.live")
	defer span.End()

	type row struct {
		LeagueID  uint
		LiveCount int
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Fixture{}).
		Select("fixtures.league_id AS league_id, COUNT(*) AS live_count").
		Joins("JOIN leagues ON leagues.id = fixtures.league_id AND leagues.active = ?", true).
		Where("fixtures.status IN ?", models.LiveStatuses).
		Group("fixtures.league_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("live window query: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	done, err := s.audit.TriggeredLeagueIDs(ctx, models.TriggerLive, startOfDayUTC(now))
	if err != nil {
		return nil, err
	}

	result := make([]LiveLeague, 0, len(rows))
	for _, r := range rows {
		if done[r.LeagueID] {
			continue
		}
		var league models.League
		if err := s.db.WithContext(ctx).First(&league, r.LeagueID).Error; err != nil {
			s.logger.Warnf("window: load league %d failed: %v", r.LeagueID, err)
			continue
		}
		result = append(result, LiveLeague{League: league, LiveCount: r.LiveCount})
	}
	span.SetAttributes(attribute.Int("window.live_leagues", len(result)))
	return result, nil
}

// PostMatchLeagues returns leagues with finished fixtures whose kickoff lies
// within [now-delay-tolerance, now-delay], grouped by league. Leagues
// already post-match-triggered today are excluded.
func (s *WindowService) PostMatchLeagues(ctx context.Context, now time.Time, cfg *models.AutomationConfig) ([]LeagueCandidates, error) {
	delay := time.Duration(cfg.PostMatchDelayHours) * time.Hour
	lo := now.Add(-delay - postMatchTolerance)
	hi := now.Add(-delay)

	var fixtures []models.Fixture
	err := s.db.WithContext(ctx).
		Joins("JOIN leagues ON leagues.id = fixtures.league_id AND leagues.active = ?", true).
		Where("fixtures.status IN ?", models.FinishedStatuses).
		Where("fixtures.kickoff_at >= ? AND fixtures.kickoff_at <= ?", lo, hi).
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		Order("fixtures.kickoff_at").
		Find(&fixtures).Error
	if err != nil {
		return nil, fmt.Errorf("post-match window query: %w", err)
	}
	if len(fixtures) == 0 {
		return nil, nil
	}

	done, err := s.audit.TriggeredLeagueIDs(ctx, models.TriggerPostMatch, startOfDayUTC(now))
	if err != nil {
		return nil, err
	}

	kept := fixtures[:0]
	for _, f := range fixtures {
		if !done[f.LeagueID] {
			kept = append(kept, f)
		}
	}
	return groupByLeague(kept), nil
}

// AnalysisCandidates returns finished fixtures old enough for deep analysis
// that have no stored analysis yet. The lower bound keeps long-dead fixtures
// from flooding a fresh deployment.
func (s *WindowService) AnalysisCandidates(ctx context.Context, now time.Time, cfg *models.AutomationConfig) ([]models.Fixture, error) {
	delay := time.Duration(cfg.AnalysisDelayHours) * time.Hour
	hi := now.Add(-delay)
	lo := now.Add(-s.lookback)

	var fixtures []models.Fixture
	err := s.db.WithContext(ctx).
		Joins("JOIN leagues ON leagues.id = fixtures.league_id AND leagues.active = ?", true).
		Where("fixtures.status IN ?", models.FinishedStatuses).
		Where("fixtures.kickoff_at >= ? AND fixtures.kickoff_at <= ?", lo, hi).
		Where("NOT EXISTS (SELECT 1 FROM match_analyses WHERE match_analyses.fixture_id = fixtures.id)").
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		Order("fixtures.kickoff_at").
		Find(&fixtures).Error
	if err != nil {
		return nil, fmt.Errorf("analysis window query: %w", err)
	}

	return s.excludeTriggered(ctx, models.TriggerAnalysis, now, fixtures)
}

func (s *WindowService) upcomingFixtures(ctx context.Context, lo, hi time.Time) ([]models.Fixture, error) {
	var fixtures []models.Fixture
	err := s.db.WithContext(ctx).
		Joins("JOIN leagues ON leagues.id = fixtures.league_id AND leagues.active = ?", true).
		Where("fixtures.status = ?", models.FixtureStatusNotStarted).
		Where("fixtures.kickoff_at >= ? AND fixtures.kickoff_at <= ?", lo, hi).
		Preload("League").Preload("HomeTeam").Preload("AwayTeam").
		Order("fixtures.kickoff_at").
		Find(&fixtures).Error
	return fixtures, err
}

func (s *WindowService) excludeTriggered(ctx context.Context, triggerType string, now time.Time, fixtures []models.Fixture) ([]models.Fixture, error) {
	if len(fixtures) == 0 {
		return fixtures, nil
	}
	done, err := s.audit.TriggeredFixtureIDs(ctx, triggerType, now.Add(-s.lookback))
	if err != nil {
		return nil, err
	}
	if len(done) == 0 {
		return fixtures, nil
	}
	kept := fixtures[:0]
	for _, f := range fixtures {
		if !done[f.ID] {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func groupByLeague(fixtures []models.Fixture) []LeagueCandidates {
	if len(fixtures) == 0 {
		return nil
	}
	index := map[uint]int{}
	var groups []LeagueCandidates
	for _, f := range fixtures {
		i, ok := index[f.LeagueID]
		if !ok {
			i = len(groups)
			index[f.LeagueID] = i
			groups = append(groups, LeagueCandidates{League: f.League})
		}
		groups[i].Fixtures = append(groups[i].Fixtures, f)
	}
	return groups
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
