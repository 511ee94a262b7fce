package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"matchpulse/internal/config"
	"matchpulse/internal/metrics"
	"matchpulse/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxWebhookResponseBytes bounds how much of a webhook response is kept for
// the audit trail.
const maxWebhookResponseBytes = 4096

// TriggerResult is the structured outcome of one dispatch. Failures are
// values, never propagated errors, so one bad call cannot abort siblings.
type TriggerResult struct {
	TriggerType  string `json:"trigger_type"`
	Status       string `json:"status"` // success, error
	LeagueID     *uint  `json:"league_id,omitempty"`
	FixtureIDs   []uint `json:"fixture_ids,omitempty"`
	FixtureCount int    `json:"fixture_count"`
	Error        string `json:"error,omitempty"`

	// Audit-trail extras, not part of the API response shape.
	WebhookURL   string `json:"-"`
	StatusCode   *int   `json:"-"`
	DurationMs   int64  `json:"-"`
	ResponseBody string `json:"-"`
}

type webhookLeague struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type webhookFixture struct {
	ID        uint      `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
	Venue     string    `json:"venue,omitempty"`
	Status    string    `json:"status,omitempty"`
	HomeScore *int      `json:"home_score,omitempty"`
	AwayScore *int      `json:"away_score,omitempty"`
}

type webhookPayload struct {
	TriggerType string           `json:"trigger_type"`
	League      *webhookLeague   `json:"league,omitempty"`
	Fixtures    []webhookFixture `json:"fixtures,omitempty"`
	LiveCount   int              `json:"live_count,omitempty"`
	Model       string           `json:"model,omitempty"`
	TriggeredAt time.Time        `json:"triggered_at"`
}

// DispatchService posts phase payloads to the external workflow engine.
// Batching differs by phase: one call per league for pre-match, live and
// post-match; one call per fixture for prediction and analysis.
type DispatchService struct {
	cfg      config.AutomationConfig
	client   *http.Client
	breakers *BreakerRegistry
	logger   *logrus.Logger
}

func NewDispatchService(cfg config.AutomationConfig, logger *logrus.Logger) *DispatchService {
	if logger == nil {
		logger = logrus.New()
	}
	return &DispatchService{
		cfg: cfg,
		client: &http.Client{
			// Per-call deadlines come from the request context; the webhook
			// timeouts differ too much across phases for a client-wide one.
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breakers: NewBreakerRegistry(DefaultCircuitBreakerConfig()),
		logger:   logger,
	}
}

// BreakerStates exposes the per-webhook breaker states for the status
// surface.
func (s *DispatchService) BreakerStates() map[string]string {
	return s.breakers.States()
}

func (s *DispatchService) webhookFor(triggerType string) config.WebhookConfig {
	switch triggerType {
	case models.TriggerPreMatch:
		return s.cfg.Webhooks.PreMatch
	case models.TriggerPrediction:
		return s.cfg.Webhooks.Prediction
	case models.TriggerLive:
		return s.cfg.Webhooks.Live
	case models.TriggerPostMatch:
		return s.cfg.Webhooks.PostMatch
	case models.TriggerAnalysis:
		return s.cfg.Webhooks.Analysis
	default:
		return config.WebhookConfig{}
	}
}

// DispatchPreMatch sends one batched call covering every eligible fixture of
// the league.
func (s *DispatchService) DispatchPreMatch(ctx context.Context, group LeagueCandidates) TriggerResult {
	payload := &webhookPayload{
		TriggerType: models.TriggerPreMatch,
		League:      &webhookLeague{ID: group.League.ID, Name: group.League.Name},
		Fixtures:    toWebhookFixtures(group.Fixtures),
		TriggeredAt: time.Now().UTC(),
	}
	leagueID := group.League.ID
	return s.dispatch(ctx, models.TriggerPreMatch, payload, fixtureIDs(group.Fixtures), len(group.Fixtures), &leagueID)
}

// DispatchPrediction sends exactly one call for one fixture, carrying the
// model selector.
func (s *DispatchService) DispatchPrediction(ctx context.Context, fixture models.Fixture) TriggerResult {
	payload := &webhookPayload{
		TriggerType: models.TriggerPrediction,
		League:      &webhookLeague{ID: fixture.League.ID, Name: fixture.League.Name},
		Fixtures:    toWebhookFixtures([]models.Fixture{fixture}),
		Model:       s.cfg.PredictionModel,
		TriggeredAt: time.Now().UTC(),
	}
	leagueID := fixture.LeagueID
	return s.dispatch(ctx, models.TriggerPrediction, payload, []uint{fixture.ID}, 1, &leagueID)
}

// DispatchLive sends one call per league with the in-play count. The call
// carries no fixture IDs but its result still reports how many in-play
// fixtures it covered.
func (s *DispatchService) DispatchLive(ctx context.Context, live LiveLeague) TriggerResult {
	payload := &webhookPayload{
		TriggerType: models.TriggerLive,
		League:      &webhookLeague{ID: live.League.ID, Name: live.League.Name},
		LiveCount:   live.LiveCount,
		TriggeredAt: time.Now().UTC(),
	}
	leagueID := live.League.ID
	return s.dispatch(ctx, models.TriggerLive, payload, nil, live.LiveCount, &leagueID)
}

// DispatchPostMatch sends one batched call per league covering its freshly
// finished fixtures.
func (s *DispatchService) DispatchPostMatch(ctx context.Context, group LeagueCandidates) TriggerResult {
	payload := &webhookPayload{
		TriggerType: models.TriggerPostMatch,
		League:      &webhookLeague{ID: group.League.ID, Name: group.League.Name},
		Fixtures:    toWebhookFixtures(group.Fixtures),
		TriggeredAt: time.Now().UTC(),
	}
	leagueID := group.League.ID
	return s.dispatch(ctx, models.TriggerPostMatch, payload, fixtureIDs(group.Fixtures), len(group.Fixtures), &leagueID)
}

// DispatchAnalysis sends exactly one call per fixture.
func (s *DispatchService) DispatchAnalysis(ctx context.Context, fixture models.Fixture) TriggerResult {
	payload := &webhookPayload{
		TriggerType: models.TriggerAnalysis,
		League:      &webhookLeague{ID: fixture.League.ID, Name: fixture.League.Name},
		Fixtures:    toWebhookFixtures([]models.Fixture{fixture}),
		TriggeredAt: time.Now().UTC(),
	}
	leagueID := fixture.LeagueID
	return s.dispatch(ctx, models.TriggerAnalysis, payload, []uint{fixture.ID}, 1, &leagueID)
}

func (s *DispatchService) dispatch(ctx context.Context, triggerType string, payload *webhookPayload, fixtures []uint, fixtureCount int, leagueID *uint) TriggerResult {
	result := TriggerResult{
		TriggerType:  triggerType,
		Status:       models.OutcomeSuccess,
		LeagueID:     leagueID,
		FixtureIDs:   fixtures,
		FixtureCount: fixtureCount,
	}
	defer func() {
		metrics.IncDispatch(triggerType, result.Status)
	}()

	wc := s.webhookFor(triggerType)
	if wc.URL == "" {
		result.Status = models.OutcomeError
		result.Error = fmt.Sprintf("no webhook configured for %s", triggerType)
		return result
	}
	result.WebhookURL = wc.URL

	breaker := s.breakers.For(triggerType)
	if !breaker.Allow() {
		result.Status = models.OutcomeError
		result.Error = "circuit breaker open"
		return result
	}

	timeout := wc.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		result.Status = models.OutcomeError
		result.Error = fmt.Sprintf("marshal payload: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.URL, bytes.NewReader(body))
	if err != nil {
		result.Status = models.OutcomeError
		result.Error = fmt.Sprintf("build request: %v", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", s.cfg.WebhookSecret)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		breaker.OnFailure()
		result.Status = models.OutcomeError
		result.Error = webhookErrorString(err)
		s.logger.Warnf("dispatch %s: webhook call failed after %dms: %v", triggerType, result.DurationMs, err)
		return result
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.StatusCode = &code
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	result.ResponseBody = string(raw)

	if code < 200 || code > 299 {
		breaker.OnFailure()
		result.Status = models.OutcomeError
		result.Error = fmt.Sprintf("webhook returned status %d", code)
		s.logger.Warnf("dispatch %s: webhook %s returned %d", triggerType, wc.URL, code)
		return result
	}

	breaker.OnSuccess()
	s.logger.Infof("dispatch %s: %d fixture(s) in %dms", triggerType, result.FixtureCount, result.DurationMs)
	return result
}

// webhookErrorString collapses transport failures into the audit vocabulary:
// deadline expiry is always recorded as "timeout".
func webhookErrorString(err error) string {
	var uerr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
		return "timeout"
	}
	return err.Error()
}

func toWebhookFixtures(fixtures []models.Fixture) []webhookFixture {
	out := make([]webhookFixture, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, webhookFixture{
			ID:        f.ID,
			HomeTeam:  f.HomeTeam.Name,
			AwayTeam:  f.AwayTeam.Name,
			KickoffAt: f.KickoffAt,
			Venue:     f.Venue,
			Status:    f.Status,
			HomeScore: f.HomeScore,
			AwayScore: f.AwayScore,
		})
	}
	return out
}

func fixtureIDs(fixtures []models.Fixture) []uint {
	ids := make([]uint, 0, len(fixtures))
	for _, f := range fixtures {
		ids = append(ids, f.ID)
	}
	return ids
}
