package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"matchpulse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// externalIDSeq keeps seeded rows clear of the unique external_id index.
var externalIDSeq int64 = 100000

func newWindowTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:window_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.League{},
		&models.Team{},
		&models.Fixture{},
		&models.Prediction{},
		&models.MatchAnalysis{},
		&models.AutomationLog{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedLeague(t *testing.T, db *gorm.DB, name string, active bool) *models.League {
	t.Helper()
	league := &models.League{ExternalID: atomic.AddInt64(&externalIDSeq, 1), Name: name, Country: "England", Active: active}
	if err := db.Create(league).Error; err != nil {
		t.Fatalf("seed league: %v", err)
	}
	return league
}

func seedFixture(t *testing.T, db *gorm.DB, leagueID uint, status string, kickoff time.Time) *models.Fixture {
	t.Helper()
	fixture := &models.Fixture{
		ExternalID: atomic.AddInt64(&externalIDSeq, 1),
		LeagueID:   leagueID,
		KickoffAt:  kickoff,
		Status:     status,
	}
	if err := db.Create(fixture).Error; err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	return fixture
}

func windowTestConfig() *models.AutomationConfig {
	cfg := models.DefaultAutomationConfig()
	return &cfg
}

func TestWindowService_PreMatchCandidates(t *testing.T) {
	db := newWindowTestDB(t)
	svc := NewWindowService(db, NewAuditService(db, nil), 48*time.Hour, nil)
	cfg := windowTestConfig()

	kickoff := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	league := seedLeague(t, db, "Premier League", true)
	seedFixture(t, db, league.ID, models.FixtureStatusNotStarted, kickoff)

	// Lead 30, tolerance 5: the window is kickoff-35m through kickoff-25m.
	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before window", kickoff.Add(-36 * time.Minute), 0},
		{"far edge inclusive", kickoff.Add(-35 * time.Minute), 1},
		{"inside window", kickoff.Add(-28 * time.Minute), 1},
		{"near edge inclusive", kickoff.Add(-25 * time.Minute), 1},
		{"past window", kickoff.Add(-24 * time.Minute), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups, err := svc.PreMatchCandidates(context.Background(), tc.now, cfg)
			if err != nil {
				t.Fatalf("PreMatchCandidates: %v", err)
			}
			got := 0
			for _, g := range groups {
				got += len(g.Fixtures)
			}
			if got != tc.want {
				t.Fatalf("at %s: got %d candidates, want %d", tc.now.Format(time.RFC3339), got, tc.want)
			}
		})
	}

	t.Run("groups by league", func(t *testing.T) {
		other := seedLeague(t, db, "La Liga", true)
		seedFixture(t, db, other.ID, models.FixtureStatusNotStarted, kickoff)
		seedFixture(t, db, other.ID, models.FixtureStatusNotStarted, kickoff.Add(2*time.Minute))

		groups, err := svc.PreMatchCandidates(context.Background(), kickoff.Add(-30*time.Minute), cfg)
		if err != nil {
			t.Fatalf("PreMatchCandidates: %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("got %d league groups, want 2", len(groups))
		}
		byLeague := map[uint]int{}
		for _, g := range groups {
			byLeague[g.League.ID] = len(g.Fixtures)
		}
		if byLeague[league.ID] != 1 || byLeague[other.ID] != 2 {
			t.Fatalf("unexpected grouping: %v", byLeague)
		}
	})

	t.Run("inactive league excluded", func(t *testing.T) {
		dormant := seedLeague(t, db, "Dormant Cup", false)
		seedFixture(t, db, dormant.ID, models.FixtureStatusNotStarted, kickoff)

		groups, err := svc.PreMatchCandidates(context.Background(), kickoff.Add(-30*time.Minute), cfg)
		if err != nil {
			t.Fatalf("PreMatchCandidates: %v", err)
		}
		for _, g := range groups {
			if g.League.ID == dormant.ID {
				t.Fatalf("inactive league %d should not appear", dormant.ID)
			}
		}
	})
}

func TestWindowService_PreMatchIdempotency(t *testing.T) {
	db := newWindowTestDB(t)
	audit := NewAuditService(db, nil)
	svc := NewWindowService(db, audit, 48*time.Hour, nil)
	cfg := windowTestConfig()

	kickoff := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	league := seedLeague(t, db, "Premier League", true)
	fixture := seedFixture(t, db, league.ID, models.FixtureStatusNotStarted, kickoff)

	now := kickoff.Add(-28 * time.Minute)
	groups, err := svc.PreMatchCandidates(context.Background(), now, cfg)
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Fixtures) != 1 {
		t.Fatalf("fixture should be a candidate before any dispatch")
	}

	// Record a successful dispatch; the fixture is still inside the window
	// at the next tick but must not come back.
	if _, err := audit.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerPreMatch,
		RunID:       "run-1",
		LeagueID:    &league.ID,
		FixtureIDs:  []uint{fixture.ID},
		Outcome:     models.OutcomeSuccess,
		TriggeredAt: now,
	}); err != nil {
		t.Fatalf("log success: %v", err)
	}

	groups, err = svc.PreMatchCandidates(context.Background(), kickoff.Add(-26*time.Minute), cfg)
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("fixture already dispatched should be excluded, got %d groups", len(groups))
	}

	// Error rows do not count as done.
	second := seedFixture(t, db, league.ID, models.FixtureStatusNotStarted, kickoff)
	if _, err := audit.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerPreMatch,
		RunID:       "run-2",
		LeagueID:    &league.ID,
		FixtureIDs:  []uint{second.ID},
		Outcome:     models.OutcomeError,
		TriggeredAt: now,
	}); err != nil {
		t.Fatalf("log error row: %v", err)
	}
	groups, err = svc.PreMatchCandidates(context.Background(), kickoff.Add(-26*time.Minute), cfg)
	if err != nil {
		t.Fatalf("third evaluation: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Fixtures) != 1 || groups[0].Fixtures[0].ID != second.ID {
		t.Fatalf("fixture with only an error row should stay eligible")
	}
}

func TestWindowService_PredictionCandidates(t *testing.T) {
	db := newWindowTestDB(t)
	svc := NewWindowService(db, NewAuditService(db, nil), 48*time.Hour, nil)
	cfg := windowTestConfig()

	kickoff := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	league := seedLeague(t, db, "Premier League", true)
	pending := seedFixture(t, db, league.ID, models.FixtureStatusNotStarted, kickoff)
	covered := seedFixture(t, db, league.ID, models.FixtureStatusNotStarted, kickoff)
	if err := db.Create(&models.Prediction{FixtureID: covered.ID, Model: "baseline", PredictedOutcome: "home"}).Error; err != nil {
		t.Fatalf("seed prediction: %v", err)
	}

	// Lead 15, tolerance 5: window is kickoff-20m through kickoff-10m.
	fixtures, err := svc.PredictionCandidates(context.Background(), kickoff.Add(-15*time.Minute), cfg)
	if err != nil {
		t.Fatalf("PredictionCandidates: %v", err)
	}
	if len(fixtures) != 1 || fixtures[0].ID != pending.ID {
		t.Fatalf("only the uncovered fixture should be a candidate, got %d", len(fixtures))
	}

	fixtures, err = svc.PredictionCandidates(context.Background(), kickoff.Add(-25*time.Minute), cfg)
	if err != nil {
		t.Fatalf("PredictionCandidates outside window: %v", err)
	}
	if len(fixtures) != 0 {
		t.Fatalf("nothing should match outside the window, got %d", len(fixtures))
	}
}

func TestWindowService_LiveLeagues(t *testing.T) {
	db := newWindowTestDB(t)
	audit := NewAuditService(db, nil)
	svc := NewWindowService(db, audit, 48*time.Hour, nil)

	now := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	busy := seedLeague(t, db, "Premier League", true)
	quiet := seedLeague(t, db, "La Liga", true)
	seedFixture(t, db, busy.ID, models.FixtureStatusFirstHalf, now.Add(-30*time.Minute))
	seedFixture(t, db, busy.ID, models.FixtureStatusHalfTime, now.Add(-50*time.Minute))
	seedFixture(t, db, quiet.ID, models.FixtureStatusNotStarted, now.Add(2*time.Hour))
	seedFixture(t, db, quiet.ID, models.FixtureStatusFullTime, now.Add(-4*time.Hour))

	leagues, err := svc.LiveLeagues(context.Background(), now)
	if err != nil {
		t.Fatalf("LiveLeagues: %v", err)
	}
	if len(leagues) != 1 || leagues[0].League.ID != busy.ID || leagues[0].LiveCount != 2 {
		t.Fatalf("expected busy league with 2 live fixtures, got %+v", leagues)
	}

	// A success row earlier the same UTC day suppresses the league.
	if _, err := audit.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerLive,
		RunID:       "run-1",
		LeagueID:    &busy.ID,
		Outcome:     models.OutcomeSuccess,
		TriggeredAt: now.Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("log success: %v", err)
	}
	leagues, err = svc.LiveLeagues(context.Background(), now)
	if err != nil {
		t.Fatalf("LiveLeagues after success: %v", err)
	}
	if len(leagues) != 0 {
		t.Fatalf("league triggered today should be excluded, got %+v", leagues)
	}

	// A success row from the previous day does not.
	if err := db.Where("league_id = ?", busy.ID).Delete(&models.AutomationLog{}).Error; err != nil {
		t.Fatalf("reset logs: %v", err)
	}
	if _, err := audit.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerLive,
		RunID:       "run-0",
		LeagueID:    &busy.ID,
		Outcome:     models.OutcomeSuccess,
		TriggeredAt: now.Add(-20 * time.Hour),
	}); err != nil {
		t.Fatalf("log yesterday success: %v", err)
	}
	leagues, err = svc.LiveLeagues(context.Background(), now)
	if err != nil {
		t.Fatalf("LiveLeagues next day: %v", err)
	}
	if len(leagues) != 1 {
		t.Fatalf("yesterday's trigger should not suppress today, got %+v", leagues)
	}
}

func TestWindowService_PostMatchLeagues(t *testing.T) {
	db := newWindowTestDB(t)
	audit := NewAuditService(db, nil)
	svc := NewWindowService(db, audit, 48*time.Hour, nil)
	cfg := windowTestConfig()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	league := seedLeague(t, db, "Premier League", true)

	// Delay 2h with a 30m tolerance: kickoffs between now-2h30m and now-2h.
	inside := seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-135*time.Minute))
	seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-90*time.Minute))
	seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-5*time.Hour))
	seedFixture(t, db, league.ID, models.FixtureStatusSecondHalf, now.Add(-130*time.Minute))

	groups, err := svc.PostMatchLeagues(context.Background(), now, cfg)
	if err != nil {
		t.Fatalf("PostMatchLeagues: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Fixtures) != 1 || groups[0].Fixtures[0].ID != inside.ID {
		t.Fatalf("only the finished fixture inside the delay window qualifies, got %+v", groups)
	}

	if _, err := audit.LogEvent(context.Background(), &AuditEntry{
		TriggerType: models.TriggerPostMatch,
		RunID:       "run-1",
		LeagueID:    &league.ID,
		Outcome:     models.OutcomeSuccess,
		TriggeredAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("log success: %v", err)
	}
	groups, err = svc.PostMatchLeagues(context.Background(), now, cfg)
	if err != nil {
		t.Fatalf("PostMatchLeagues after success: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("league triggered today should be excluded, got %+v", groups)
	}
}

func TestWindowService_AnalysisCandidates(t *testing.T) {
	db := newWindowTestDB(t)
	svc := NewWindowService(db, NewAuditService(db, nil), 48*time.Hour, nil)
	cfg := windowTestConfig()

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	league := seedLeague(t, db, "Premier League", true)

	// Delay 4h; eligible kickoffs are older than now-4h but within lookback.
	eligible := seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-6*time.Hour))
	analyzed := seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-7*time.Hour))
	seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-2*time.Hour))
	seedFixture(t, db, league.ID, models.FixtureStatusFullTime, now.Add(-72*time.Hour))
	if err := db.Create(&models.MatchAnalysis{FixtureID: analyzed.ID, Model: "deep", Content: "{}"}).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	fixtures, err := svc.AnalysisCandidates(context.Background(), now, cfg)
	if err != nil {
		t.Fatalf("AnalysisCandidates: %v", err)
	}
	if len(fixtures) != 1 || fixtures[0].ID != eligible.ID {
		t.Fatalf("expected the single unanalyzed fixture inside lookback, got %d", len(fixtures))
	}
}
