package services

import (
	"context"
	"fmt"
	"time"

	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Schedule activity states, ordered by urgency.
const (
	StateLiveInProgress    = "live_in_progress"
	StatePreMatchImminent  = "pre_match_imminent"
	StatePostMatchSettling = "post_match_settling"
	StateQuiet             = "quiet"
)

// PhaseEstimate is an advisory read of the schedule: which state the
// calendar is in and how soon the next automation pass is worth running.
type PhaseEstimate struct {
	State            string     `json:"state"`
	LiveCount        int        `json:"live_count"`
	NextKickoffAt    *time.Time `json:"next_kickoff_at,omitempty"`
	NextCheckMinutes int        `json:"next_check_minutes"`
	Reason           string     `json:"reason"`
}

// EstimatorService derives the schedule state from stored fixtures. It
// never mutates anything and never dispatches.
type EstimatorService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewEstimatorService(db *gorm.DB, logger *logrus.Logger) *EstimatorService {
	if logger == nil {
		logger = logrus.New()
	}
	return &EstimatorService{db: db, logger: logger}
}

// Estimate classifies the current moment. Precedence: live play beats an
// imminent kickoff beats a recent finish beats quiet.
func (s *EstimatorService) Estimate(ctx context.Context, now time.Time) (*PhaseEstimate, error) {
	now = now.UTC()

	var liveCount int64
	if err := s.db.WithContext(ctx).Model(&models.Fixture{}).
		Where("status IN ?", models.LiveStatuses).
		Count(&liveCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count live fixtures: %w", err)
	}
	if liveCount > 0 {
		return &PhaseEstimate{
			State:            StateLiveInProgress,
			LiveCount:        int(liveCount),
			NextCheckMinutes: 1,
			Reason:           fmt.Sprintf("%d fixture(s) in play", liveCount),
		}, nil
	}

	var next models.Fixture
	err := s.db.WithContext(ctx).
		Where("status = ? AND kickoff_at > ?", models.FixtureStatusNotStarted, now).
		Order("kickoff_at ASC").
		First(&next).Error
	hasNext := err == nil
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to find next kickoff: %w", err)
	}

	if hasNext {
		until := next.KickoffAt.Sub(now)
		if until <= time.Hour {
			return &PhaseEstimate{
				State:            StatePreMatchImminent,
				NextKickoffAt:    &next.KickoffAt,
				NextCheckMinutes: 2,
				Reason:           fmt.Sprintf("kickoff in %d minute(s)", int(until.Minutes())),
			}, nil
		}
	}

	var settling int64
	if err := s.db.WithContext(ctx).Model(&models.Fixture{}).
		Where("status IN ? AND finished_at > ?", models.FinishedStatuses, now.Add(-3*time.Hour)).
		Count(&settling).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent finishes: %w", err)
	}
	if settling > 0 {
		est := &PhaseEstimate{
			State:            StatePostMatchSettling,
			NextCheckMinutes: 10,
			Reason:           fmt.Sprintf("%d fixture(s) finished in the last 3h", settling),
		}
		if hasNext {
			est.NextKickoffAt = &next.KickoffAt
		}
		return est, nil
	}

	est := &PhaseEstimate{
		State:            StateQuiet,
		NextCheckMinutes: 30,
		Reason:           "no live play, imminent kickoffs or recent finishes",
	}
	if hasNext {
		est.NextKickoffAt = &next.KickoffAt
		// Wake shortly before the pre-match window opens rather than on a
		// fixed cadence.
		untilMinutes := int(next.KickoffAt.Sub(now).Minutes()) - 60
		if untilMinutes > 0 && untilMinutes < est.NextCheckMinutes {
			est.NextCheckMinutes = untilMinutes
		}
	}
	return est, nil
}
