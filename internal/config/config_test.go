package config

import (
	"testing"
	"time"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Fatalf("server port = %d", cfg.Server.Port)
	}
	if cfg.Database.Name != "matchpulse" || cfg.Database.Port != 5432 {
		t.Fatalf("database defaults = %+v", cfg.Database)
	}
	if cfg.JWT.ExpiresIn != 24*time.Hour {
		t.Fatalf("jwt expiry = %v", cfg.JWT.ExpiresIn)
	}
	if cfg.Log.Format != "json" || cfg.Log.Output != "stdout" {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
	if !cfg.Security.RateLimiting.Enabled || cfg.Security.RateLimiting.RequestsPerMinute != 120 {
		t.Fatalf("rate limiting defaults = %+v", cfg.Security.RateLimiting)
	}
	if cfg.Monitoring.Tracing.Enabled {
		t.Fatalf("tracing must default to disabled")
	}
}

func TestGetDefaultConfig_Automation(t *testing.T) {
	auto := GetDefaultConfig().Automation

	if auto.CadenceMinutes != 5 {
		t.Fatalf("cadence = %d", auto.CadenceMinutes)
	}
	if auto.RunBudget != 2*time.Minute {
		t.Fatalf("run budget = %v", auto.RunBudget)
	}
	if auto.DedupLookback != 48*time.Hour {
		t.Fatalf("dedup lookback = %v", auto.DedupLookback)
	}

	// Webhook URLs are deployment-specific and must stay empty, but every
	// phase ships a timeout.
	webhooks := []struct {
		name string
		wc   WebhookConfig
	}{
		{"pre_match", auto.Webhooks.PreMatch},
		{"prediction", auto.Webhooks.Prediction},
		{"live", auto.Webhooks.Live},
		{"post_match", auto.Webhooks.PostMatch},
		{"analysis", auto.Webhooks.Analysis},
	}
	for _, w := range webhooks {
		if w.wc.URL != "" {
			t.Fatalf("%s webhook URL must default empty, got %q", w.name, w.wc.URL)
		}
		if w.wc.Timeout <= 0 {
			t.Fatalf("%s webhook timeout missing", w.name)
		}
	}
	if auto.Webhooks.Analysis.Timeout <= auto.Webhooks.PreMatch.Timeout {
		t.Fatalf("analysis webhook should allow the longest-running workflow")
	}
}

func TestInitLogger(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}

	// Unknown levels fall back instead of failing startup.
	cfg.Log.Level = "extremely-verbose"
	if err := InitLogger(cfg); err != nil {
		t.Fatalf("InitLogger with bad level: %v", err)
	}
}
