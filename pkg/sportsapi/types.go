package sportsapi

import "time"

// Config for the sports-data API client.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.sportsdata.example",
		Timeout:    15 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// APITeam is a team as the provider returns it.
type APITeam struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	LogoURL   string `json:"logo"`
}

// APIFixture is a fixture as the provider returns it. Status uses the
// provider's short codes (NS, 1H, HT, 2H, ET, P, LIVE, FT, AET, PEN, ...).
type APIFixture struct {
	ID        int64      `json:"id"`
	LeagueID  int64      `json:"league_id"`
	Home      APITeam    `json:"home"`
	Away      APITeam    `json:"away"`
	KickoffAt time.Time  `json:"kickoff_at"`
	Venue     string     `json:"venue"`
	Round     string     `json:"round"`
	Status    string     `json:"status"`
	HomeScore *int       `json:"home_score"`
	AwayScore *int       `json:"away_score"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// APIStanding is one table row for a league season.
type APIStanding struct {
	TeamID         int64  `json:"team_id"`
	TeamName       string `json:"team_name"`
	Position       int    `json:"position"`
	Played         int    `json:"played"`
	Won            int    `json:"won"`
	Draw           int    `json:"draw"`
	Lost           int    `json:"lost"`
	GoalsFor       int    `json:"goals_for"`
	GoalsAgainst   int    `json:"goals_against"`
	GoalDifference int    `json:"goal_difference"`
	Points         int    `json:"points"`
	Form           string `json:"form"`
}

type FixturesResponse struct {
	Success  bool         `json:"success"`
	Fixtures []APIFixture `json:"fixtures"`
	Total    int          `json:"total"`
}

type StandingsResponse struct {
	Success   bool          `json:"success"`
	Standings []APIStanding `json:"standings"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}
