package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"matchpulse/internal/config"
	"matchpulse/internal/models"
	"matchpulse/pkg/sportsapi"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PhaseSummary aggregates one phase's counters for the run summary.
type PhaseSummary struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
	Errors    int `json:"errors"`
}

// RunSummary is the terminal state of one orchestrator run.
type RunSummary struct {
	RunID      string                   `json:"run_id"`
	Status     string                   `json:"status"` // success, error, skipped
	StartedAt  time.Time                `json:"started_at"`
	DurationMs int64                    `json:"duration_ms"`
	Phases     map[string]*PhaseSummary `json:"phases"`
	Results    []TriggerResult          `json:"results"`
}

// AutomationStatus is the GET-side view of the engine.
type AutomationStatus struct {
	IsEnabled      bool                     `json:"isEnabled"`
	LastCronRun    *time.Time               `json:"lastCronRun"`
	LastCronStatus string                   `json:"lastCronStatus"`
	NextCronRun    *time.Time               `json:"nextCronRun"`
	Config         *models.AutomationConfig `json:"config"`
	Breakers       map[string]string        `json:"breakers"`
}

// TriggerService is the orchestrator: one Run covers every enabled phase
// once. Phases are independent and run concurrently; a failure inside one
// phase never blocks the others. Only a missing config row aborts the run.
type TriggerService struct {
	configSvc  *AutomationConfigService
	windows    *WindowService
	dispatcher *DispatchService
	audit      *AuditService
	fixtures   *FixtureService
	sports     sportsapi.SportsDataInterface
	hub        *LiveHub

	runBudget time.Duration
	cadence   time.Duration
	logger    *logrus.Logger
	tracer    trace.Tracer
}

func NewTriggerService(
	configSvc *AutomationConfigService,
	windows *WindowService,
	dispatcher *DispatchService,
	audit *AuditService,
	fixtures *FixtureService,
	sports sportsapi.SportsDataInterface,
	hub *LiveHub,
	auto config.AutomationConfig,
	logger *logrus.Logger,
) *TriggerService {
	if logger == nil {
		logger = logrus.New()
	}
	budget := auto.RunBudget
	if budget <= 0 {
		budget = 2 * time.Minute
	}
	cadence := time.Duration(auto.CadenceMinutes) * time.Minute
	if cadence <= 0 {
		cadence = 5 * time.Minute
	}
	return &TriggerService{
		configSvc:  configSvc,
		windows:    windows,
		dispatcher: dispatcher,
		audit:      audit,
		fixtures:   fixtures,
		sports:     sports,
		hub:        hub,
		runBudget:  budget,
		cadence:    cadence,
		logger:     logger,
		tracer:     otel.Tracer("matchpulse.trigger"),
	}
}

// phaseOutcome carries one phase's results back to the aggregation step.
type phaseOutcome struct {
	name    string
	checked int
	results []TriggerResult
	err     error
}

// Run executes one full automation pass and returns its summary. The
// returned error is non-nil only for fatal configuration failure.
func (s *TriggerService) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()

	ctx, span := s.tracer.Start(ctx, "automation.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	summary := &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Phases: map[string]*PhaseSummary{
			models.TriggerPreMatch:   {},
			models.TriggerPrediction: {},
			models.TriggerLive:       {},
			models.TriggerPostMatch:  {},
			models.TriggerAnalysis:   {},
		},
	}

	cfg, err := s.configSvc.Get(ctx)
	if err != nil {
		s.logger.Errorf("automation run %s aborted: %v", runID, err)
		s.logRunTerminal(ctx, runID, models.OutcomeError, fmt.Sprintf("run aborted: %v", err), startedAt, nil)
		return nil, err
	}

	if !cfg.Enabled {
		summary.Status = "skipped"
		summary.DurationMs = time.Since(startedAt).Milliseconds()
		s.logRunTerminal(ctx, runID, models.OutcomeSkipped, "automation disabled", startedAt, summary)
		return summary, nil
	}

	// Best-effort overlap guard: a fresh running marker means another
	// invocation is still inside its budget. A stale marker is from a
	// crashed run and is overwritten.
	if cfg.LastRunStatus == models.RunStatusRunning && time.Since(cfg.UpdatedAt) < s.runBudget {
		summary.Status = "skipped"
		summary.DurationMs = time.Since(startedAt).Milliseconds()
		s.logRunTerminal(ctx, runID, models.OutcomeSkipped, "previous run still in progress", startedAt, summary)
		return summary, nil
	}

	if err := s.configSvc.MarkRunning(ctx, cfg.ID); err != nil {
		s.logger.Warnf("automation run %s: mark running failed: %v", runID, err)
	}

	// The budget bounds window evaluation and the start of new dispatch
	// units. A unit already in flight finishes under its own webhook
	// timeout and always gets its audit row.
	runCtx, cancel := context.WithTimeout(ctx, s.runBudget)
	defer cancel()

	now := startedAt
	phases := []struct {
		name    string
		enabled bool
		fn      func(context.Context) ([]TriggerResult, int, error)
	}{
		{models.TriggerPreMatch, cfg.PreMatchEnabled, func(c context.Context) ([]TriggerResult, int, error) {
			return s.runPreMatch(c, runID, now, cfg)
		}},
		{models.TriggerPrediction, cfg.PredictionEnabled, func(c context.Context) ([]TriggerResult, int, error) {
			return s.runPrediction(c, runID, now, cfg)
		}},
		{models.TriggerLive, cfg.LiveEnabled, func(c context.Context) ([]TriggerResult, int, error) {
			return s.runLive(c, runID, now)
		}},
		{models.TriggerPostMatch, cfg.PostMatchEnabled, func(c context.Context) ([]TriggerResult, int, error) {
			return s.runPostMatch(c, runID, now, cfg)
		}},
		{models.TriggerAnalysis, cfg.AnalysisEnabled, func(c context.Context) ([]TriggerResult, int, error) {
			return s.runAnalysis(c, runID, now, cfg)
		}},
	}

	outcomes := make(chan phaseOutcome, len(phases))
	var wg sync.WaitGroup
	for _, phase := range phases {
		if !phase.enabled {
			continue
		}
		wg.Add(1)
		go func(name string, fn func(context.Context) ([]TriggerResult, int, error)) {
			defer wg.Done()
			results, checked, err := fn(runCtx)
			outcomes <- phaseOutcome{name: name, checked: checked, results: results, err: err}
		}(phase.name, phase.fn)
	}
	wg.Wait()
	close(outcomes)

	runFailed := false
	for outcome := range outcomes {
		ps := summary.Phases[outcome.name]
		ps.Checked = outcome.checked
		for _, res := range outcome.results {
			summary.Results = append(summary.Results, res)
			if res.Status == models.OutcomeSuccess {
				ps.Triggered++
			} else {
				ps.Errors++
				runFailed = true
			}
		}
		if outcome.err != nil {
			// Evaluation failed before any dispatch; the failure stays
			// inside this phase.
			ps.Errors++
			runFailed = true
			s.logger.Errorf("automation run %s: %s phase failed: %v", runID, outcome.name, outcome.err)
			completed := time.Now().UTC()
			_, _ = s.audit.LogEvent(ctx, &AuditEntry{
				TriggerType:  outcome.name,
				RunID:        runID,
				Outcome:      models.OutcomeError,
				Message:      "phase evaluation failed",
				ErrorMessage: outcome.err.Error(),
				TriggeredAt:  now,
				CompletedAt:  &completed,
			})
		}
	}

	finishedAt := time.Now().UTC()
	summary.DurationMs = finishedAt.Sub(startedAt).Milliseconds()
	if runFailed {
		summary.Status = models.RunStatusError
	} else {
		summary.Status = models.RunStatusSuccess
	}

	if err := s.configSvc.MarkFinished(ctx, cfg.ID, summary.Status, finishedAt); err != nil {
		s.logger.Warnf("automation run %s: mark finished failed: %v", runID, err)
	}

	outcome := models.OutcomeSuccess
	if runFailed {
		outcome = models.OutcomeError
	}
	s.logRunTerminal(ctx, runID, outcome, summarizePhases(summary), startedAt, summary)
	s.hub.BroadcastRunSummary(summary)

	span.SetAttributes(attribute.String("run.status", summary.Status), attribute.Int("run.results", len(summary.Results)))
	s.logger.Infof("automation run %s finished: %s (%s) in %dms", runID, summary.Status, summarizePhases(summary), summary.DurationMs)
	return summary, nil
}

// Status renders the GET-side status view.
func (s *TriggerService) Status(ctx context.Context) (*AutomationStatus, error) {
	cfg, err := s.configSvc.Get(ctx)
	if err != nil {
		return nil, err
	}
	status := &AutomationStatus{
		IsEnabled:      cfg.Enabled,
		LastCronRun:    cfg.LastRunAt,
		LastCronStatus: cfg.LastRunStatus,
		Config:         cfg,
		Breakers:       s.dispatcher.BreakerStates(),
	}
	if cfg.LastRunAt != nil {
		next := cfg.LastRunAt.Add(s.cadence)
		status.NextCronRun = &next
	}
	return status, nil
}

func (s *TriggerService) runPreMatch(ctx context.Context, runID string, now time.Time, cfg *models.AutomationConfig) ([]TriggerResult, int, error) {
	groups, err := s.windows.PreMatchCandidates(ctx, now, cfg)
	if err != nil {
		return nil, 0, err
	}
	checked := countFixtures(groups)
	if len(groups) == 0 {
		_ = s.audit.LogNoAction(ctx, runID, models.TriggerPreMatch, now)
		return nil, checked, nil
	}
	results := s.dispatchGroups(ctx, runID, groups, s.dispatcher.DispatchPreMatch)
	return results, checked, nil
}

func (s *TriggerService) runPrediction(ctx context.Context, runID string, now time.Time, cfg *models.AutomationConfig) ([]TriggerResult, int, error) {
	fixtures, err := s.windows.PredictionCandidates(ctx, now, cfg)
	if err != nil {
		return nil, 0, err
	}
	if len(fixtures) == 0 {
		_ = s.audit.LogNoAction(ctx, runID, models.TriggerPrediction, now)
		return nil, 0, nil
	}
	results := s.dispatchFixtures(ctx, runID, fixtures, s.dispatcher.DispatchPrediction)
	return results, len(fixtures), nil
}

func (s *TriggerService) runLive(ctx context.Context, runID string, now time.Time) ([]TriggerResult, int, error) {
	// The refresh is a blocking dependency: it mutates the statuses the
	// live window query reads. A refresh failure degrades to evaluating
	// stored statuses.
	if err := s.refreshLive(ctx); err != nil {
		s.logger.Warnf("automation run %s: live refresh failed, using stored statuses: %v", runID, err)
	}

	leagues, err := s.windows.LiveLeagues(ctx, now)
	if err != nil {
		return nil, 0, err
	}
	if len(leagues) == 0 {
		_ = s.audit.LogNoAction(ctx, runID, models.TriggerLive, now)
		return nil, 0, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []TriggerResult
		checked int
	)
	dispatchCtx := context.WithoutCancel(ctx)
	for _, live := range leagues {
		if ctx.Err() != nil {
			break
		}
		checked += live.LiveCount
		wg.Add(1)
		go func(live LiveLeague) {
			defer wg.Done()
			triggeredAt := time.Now().UTC()
			res := s.dispatcher.DispatchLive(dispatchCtx, live)
			s.logResult(dispatchCtx, runID, res, triggeredAt)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(live)
	}
	wg.Wait()
	return results, checked, nil
}

func (s *TriggerService) runPostMatch(ctx context.Context, runID string, now time.Time, cfg *models.AutomationConfig) ([]TriggerResult, int, error) {
	groups, err := s.windows.PostMatchLeagues(ctx, now, cfg)
	if err != nil {
		return nil, 0, err
	}
	checked := countFixtures(groups)
	if len(groups) == 0 {
		_ = s.audit.LogNoAction(ctx, runID, models.TriggerPostMatch, now)
		return nil, checked, nil
	}
	results := s.dispatchGroups(ctx, runID, groups, s.dispatcher.DispatchPostMatch)
	return results, checked, nil
}

func (s *TriggerService) runAnalysis(ctx context.Context, runID string, now time.Time, cfg *models.AutomationConfig) ([]TriggerResult, int, error) {
	fixtures, err := s.windows.AnalysisCandidates(ctx, now, cfg)
	if err != nil {
		return nil, 0, err
	}
	if len(fixtures) == 0 {
		_ = s.audit.LogNoAction(ctx, runID, models.TriggerAnalysis, now)
		return nil, 0, nil
	}
	results := s.dispatchFixtures(ctx, runID, fixtures, s.dispatcher.DispatchAnalysis)
	return results, len(fixtures), nil
}

// dispatchGroups fans one dispatch per league group out concurrently. Each
// unit is fault-isolated: its result is logged after the call resolves and
// siblings are never cancelled by a failure. Dispatch and the audit write
// run on a context detached from the run budget so a call that outlives the
// budget still resolves and still lands its row; units not yet started when
// the budget lapses are left for the next run.
func (s *TriggerService) dispatchGroups(ctx context.Context, runID string, groups []LeagueCandidates, dispatch func(context.Context, LeagueCandidates) TriggerResult) []TriggerResult {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []TriggerResult
	)
	dispatchCtx := context.WithoutCancel(ctx)
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(group LeagueCandidates) {
			defer wg.Done()
			triggeredAt := time.Now().UTC()
			res := dispatch(dispatchCtx, group)
			s.logResult(dispatchCtx, runID, res, triggeredAt)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(group)
	}
	wg.Wait()
	return results
}

func (s *TriggerService) dispatchFixtures(ctx context.Context, runID string, fixtures []models.Fixture, dispatch func(context.Context, models.Fixture) TriggerResult) []TriggerResult {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []TriggerResult
	)
	dispatchCtx := context.WithoutCancel(ctx)
	for _, fixture := range fixtures {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(fixture models.Fixture) {
			defer wg.Done()
			triggeredAt := time.Now().UTC()
			res := dispatch(dispatchCtx, fixture)
			s.logResult(dispatchCtx, runID, res, triggeredAt)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(fixture)
	}
	wg.Wait()
	return results
}

// refreshLive pulls the provider's in-play fixtures and persists status and
// score changes, pushing each change to the live hub.
func (s *TriggerService) refreshLive(ctx context.Context) error {
	if s.sports == nil {
		return nil
	}
	live, err := s.sports.FetchLiveFixtures(ctx)
	if err != nil {
		return err
	}
	for _, af := range live {
		fixture, changed, err := s.fixtures.ApplyLiveUpdate(ctx, af)
		if err != nil {
			s.logger.Warnf("live refresh: fixture %d: %v", af.ID, err)
			continue
		}
		if changed {
			s.hub.BroadcastFixtureUpdate(fixture)
		}
	}
	return nil
}

// logResult writes the audit row for one resolved dispatch, strictly after
// the dispatch finished.
func (s *TriggerService) logResult(ctx context.Context, runID string, res TriggerResult, triggeredAt time.Time) {
	completed := time.Now().UTC()
	entry := &AuditEntry{
		TriggerType:       res.TriggerType,
		RunID:             runID,
		LeagueID:          res.LeagueID,
		FixtureIDs:        res.FixtureIDs,
		FixtureCount:      res.FixtureCount,
		WebhookURL:        res.WebhookURL,
		WebhookStatusCode: res.StatusCode,
		Outcome:           res.Status,
		Message:           fmt.Sprintf("dispatched %d fixture(s)", res.FixtureCount),
		ErrorMessage:      res.Error,
		TriggeredAt:       triggeredAt,
		CompletedAt:       &completed,
	}
	if res.DurationMs > 0 {
		ms := res.DurationMs
		entry.WebhookDurationMs = &ms
	}
	if res.ResponseBody != "" {
		entry.Details = map[string]interface{}{"webhook_response": res.ResponseBody}
	}
	if res.Status != models.OutcomeSuccess {
		entry.Message = "dispatch failed"
	}
	if _, err := s.audit.LogEvent(ctx, entry); err != nil {
		s.logger.Errorf("automation run %s: audit write failed for %s: %v", runID, res.TriggerType, err)
	}
}

// logRunTerminal appends the run_summary audit row for a terminal state.
func (s *TriggerService) logRunTerminal(ctx context.Context, runID, outcome, message string, startedAt time.Time, summary *RunSummary) {
	completed := time.Now().UTC()
	entry := &AuditEntry{
		TriggerType: models.TriggerRunSummary,
		RunID:       runID,
		Outcome:     outcome,
		Message:     message,
		TriggeredAt: startedAt,
		CompletedAt: &completed,
	}
	if outcome == models.OutcomeError {
		entry.ErrorMessage = message
	}
	if summary != nil {
		entry.Details = summary
	}
	if _, err := s.audit.LogEvent(ctx, entry); err != nil {
		s.logger.Errorf("automation run %s: run summary audit write failed: %v", runID, err)
	}
}

func summarizePhases(summary *RunSummary) string {
	parts := make([]string, 0, len(summary.Phases))
	for _, name := range []string{models.TriggerPreMatch, models.TriggerPrediction, models.TriggerLive, models.TriggerPostMatch, models.TriggerAnalysis} {
		if ps, ok := summary.Phases[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d/%d/%d", name, ps.Checked, ps.Triggered, ps.Errors))
		}
	}
	return strings.Join(parts, " ")
}

func countFixtures(groups []LeagueCandidates) int {
	total := 0
	for _, g := range groups {
		total += len(g.Fixtures)
	}
	return total
}
