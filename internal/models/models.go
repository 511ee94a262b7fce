package models

import (
	"time"

	"gorm.io/gorm"
)

// User accounts for the dashboard. Service accounts authenticate the
// external scheduler that fires the automation trigger endpoint.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'viewer'" json:"role"` // viewer, admin, service
	Status    string         `gorm:"default:'active'" json:"status"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// League is a tracked competition. Only active leagues are considered by the
// automation engine's league-scoped checks.
type League struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID int64          `gorm:"uniqueIndex" json:"external_id"`
	Name       string         `gorm:"not null" json:"name"`
	Country    string         `json:"country"`
	Season     string         `json:"season"`
	LogoURL    string         `json:"logo_url"`
	Active     bool           `gorm:"default:true" json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Fixtures  []Fixture  `gorm:"foreignKey:LeagueID" json:"fixtures,omitempty"`
	Standings []Standing `gorm:"foreignKey:LeagueID" json:"standings,omitempty"`
}

type Team struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID int64     `gorm:"uniqueIndex" json:"external_id"`
	Name       string    `gorm:"not null" json:"name"`
	ShortName  string    `json:"short_name"`
	LogoURL    string    `json:"logo_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Fixture statuses follow the provider's short codes.
const (
	FixtureStatusNotStarted = "NS"
	FixtureStatusFirstHalf  = "1H"
	FixtureStatusHalfTime   = "HT"
	FixtureStatusSecondHalf = "2H"
	FixtureStatusExtraTime  = "ET"
	FixtureStatusPenalties  = "P"
	FixtureStatusLive       = "LIVE"
	FixtureStatusFullTime   = "FT"
	FixtureStatusAfterExtra = "AET"
	FixtureStatusAfterPens  = "PEN"
	FixtureStatusPostponed  = "PST"
	FixtureStatusCancelled  = "CANC"
)

// LiveStatuses and FinishedStatuses are the in-play and finished variants
// used by the league-scoped window queries.
var (
	LiveStatuses     = []string{FixtureStatusFirstHalf, FixtureStatusHalfTime, FixtureStatusSecondHalf, FixtureStatusExtraTime, FixtureStatusPenalties, FixtureStatusLive}
	FinishedStatuses = []string{FixtureStatusFullTime, FixtureStatusAfterExtra, FixtureStatusAfterPens}
)

// Fixture rows are owned by the data-ingestion path; the automation engine
// only reads them.
type Fixture struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ExternalID int64      `gorm:"uniqueIndex" json:"external_id"`
	LeagueID   uint       `gorm:"index" json:"league_id"`
	HomeTeamID uint       `gorm:"index" json:"home_team_id"`
	AwayTeamID uint       `gorm:"index" json:"away_team_id"`
	KickoffAt  time.Time  `gorm:"index" json:"kickoff_at"`
	Venue      string     `json:"venue"`
	Round      string     `json:"round"`
	Status     string     `gorm:"index;default:'NS'" json:"status"`
	HomeScore  *int       `json:"home_score"`
	AwayScore  *int       `json:"away_score"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	League   League `gorm:"foreignKey:LeagueID" json:"league,omitempty"`
	HomeTeam Team   `gorm:"foreignKey:HomeTeamID" json:"home_team,omitempty"`
	AwayTeam Team   `gorm:"foreignKey:AwayTeamID" json:"away_team,omitempty"`
}

// IsLive reports whether the fixture is in an in-play variant.
func (f *Fixture) IsLive() bool {
	for _, s := range LiveStatuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

// IsFinished reports whether the fixture reached a finished variant.
func (f *Fixture) IsFinished() bool {
	for _, s := range FinishedStatuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

type Standing struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	LeagueID       uint      `gorm:"index:idx_standings_league_team,unique" json:"league_id"`
	TeamID         uint      `gorm:"index:idx_standings_league_team,unique" json:"team_id"`
	Position       int       `json:"position"`
	Played         int       `json:"played"`
	Won            int       `json:"won"`
	Draw           int       `json:"draw"`
	Lost           int       `json:"lost"`
	GoalsFor       int       `json:"goals_for"`
	GoalsAgainst   int       `json:"goals_against"`
	GoalDifference int       `json:"goal_difference"`
	Points         int       `json:"points"`
	Form           string    `json:"form"`
	UpdatedAt      time.Time `json:"updated_at"`

	League League `gorm:"foreignKey:LeagueID" json:"league,omitempty"`
	Team   Team   `gorm:"foreignKey:TeamID" json:"team,omitempty"`
}

// Prediction is written once a prediction dispatch lands; its presence
// excludes the fixture from the prediction window.
type Prediction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FixtureID        uint      `gorm:"index" json:"fixture_id"`
	Model            string    `json:"model"`             // model selector sent with the dispatch
	PredictedOutcome string    `json:"predicted_outcome"` // home, draw, away
	PredictedHome    *int      `json:"predicted_home"`
	PredictedAway    *int      `json:"predicted_away"`
	Confidence       float64   `json:"confidence"`
	Summary          string    `gorm:"type:text" json:"summary"`
	CreatedAt        time.Time `json:"created_at"`

	Fixture Fixture `gorm:"foreignKey:FixtureID" json:"fixture,omitempty"`
}

// MatchAnalysis is the post-hoc deep dive produced by the analysis workflow.
type MatchAnalysis struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FixtureID uint      `gorm:"uniqueIndex" json:"fixture_id"`
	Model     string    `json:"model"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Fixture Fixture `gorm:"foreignKey:FixtureID" json:"fixture,omitempty"`
}
