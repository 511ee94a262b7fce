package models

import "time"

// Trigger types stamped on automation log entries.
const (
	TriggerPreMatch   = "pre_match"
	TriggerPrediction = "prediction"
	TriggerLive       = "live"
	TriggerPostMatch  = "post_match"
	TriggerAnalysis   = "analysis"
	TriggerRunSummary = "run_summary"
)

// Log/dispatch outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeNoAction = "no_action"
)

// Run statuses stored on the automation config row.
const (
	RunStatusUnset   = "unset"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// AutomationConfig is a singleton row. Enable flags and thresholds are
// admin-mutable; the run-status fields are written only by the orchestrator.
type AutomationConfig struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Enabled bool `gorm:"default:true" json:"enabled"`

	PreMatchEnabled   bool `gorm:"default:true" json:"pre_match_enabled"`
	PredictionEnabled bool `gorm:"default:true" json:"prediction_enabled"`
	LiveEnabled       bool `gorm:"default:true" json:"live_enabled"`
	PostMatchEnabled  bool `gorm:"default:true" json:"post_match_enabled"`
	AnalysisEnabled   bool `gorm:"default:true" json:"analysis_enabled"`

	// Minutes before kickoff for the pre-kickoff phases; the tolerance
	// widens each window to [lead-tol, lead+tol].
	PreMatchLeadMinutes        int `gorm:"default:30" json:"pre_match_lead_minutes"`
	PreMatchToleranceMinutes   int `gorm:"default:5" json:"pre_match_tolerance_minutes"`
	PredictionLeadMinutes      int `gorm:"default:15" json:"prediction_lead_minutes"`
	PredictionToleranceMinutes int `gorm:"default:5" json:"prediction_tolerance_minutes"`

	// Hours after full time for the post-final phases.
	PostMatchDelayHours int `gorm:"default:2" json:"post_match_delay_hours"`
	AnalysisDelayHours  int `gorm:"default:4" json:"analysis_delay_hours"`

	LastRunAt     *time.Time `json:"last_run_at"`
	LastRunStatus string     `gorm:"default:'unset'" json:"last_run_status"` // running, success, error, unset

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAutomationConfig returns the row the migrator seeds when no config
// exists yet: everything enabled with the stock thresholds.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		Enabled:                    true,
		PreMatchEnabled:            true,
		PredictionEnabled:          true,
		LiveEnabled:                true,
		PostMatchEnabled:           true,
		AnalysisEnabled:            true,
		PreMatchLeadMinutes:        30,
		PreMatchToleranceMinutes:   5,
		PredictionLeadMinutes:      15,
		PredictionToleranceMinutes: 5,
		PostMatchDelayHours:        2,
		AnalysisDelayHours:         4,
		LastRunStatus:              RunStatusUnset,
	}
}

// AutomationLog is the append-only audit trail: one row per dispatch attempt,
// per empty-window decision, and one run_summary row per orchestrator run.
// Rows are never mutated after CompletedAt is set; success rows double as the
// idempotency anchor for the window queries.
type AutomationLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	TriggerType       string     `gorm:"index;not null" json:"trigger_type"`
	RunID             string     `gorm:"index;not null" json:"run_id"`
	LeagueID          *uint      `gorm:"index" json:"league_id"`
	FixtureIDs        string     `gorm:"type:text" json:"fixture_ids"` // JSON array of fixture ids
	FixtureCount      int        `json:"fixture_count"`
	WebhookURL        string     `json:"webhook_url"`
	WebhookStatusCode *int       `json:"webhook_status_code"`
	WebhookDurationMs *int64     `json:"webhook_duration_ms"`
	Outcome           string     `gorm:"index;not null" json:"outcome"` // success, error, skipped, no_action
	Message           string     `gorm:"type:text" json:"message"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message"`
	TriggeredAt       time.Time  `gorm:"index" json:"triggered_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	Details           string     `gorm:"type:text" json:"details"` // JSON blob, e.g. fixture summaries or raw webhook response
}
