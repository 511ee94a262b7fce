package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Security   SecurityConfig   `yaml:"security"`
	SportsAPI  SportsAPIConfig  `yaml:"sports_api"`
	Automation AutomationConfig `yaml:"automation"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json, text
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxAge     int    `yaml:"max_age"`  // days
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

type MonitoringConfig struct {
	Enabled bool          `yaml:"enabled"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig drives the OTLP gRPC exporter setup.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

type SecurityConfig struct {
	CORS         CORSConfig         `yaml:"cors"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type RateLimitingConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// SportsAPIConfig points at the third-party sports-data provider.
type SportsAPIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AutomationConfig holds the deploy-time side of the automation engine:
// webhook targets and run pacing. The runtime side (enable flags, phase
// thresholds) lives in the automation_configs DB row.
type AutomationConfig struct {
	CadenceMinutes  int            `yaml:"cadence_minutes"`  // external scheduler cadence
	RunBudget       time.Duration  `yaml:"run_budget"`       // wall-clock budget per run
	DedupLookback   time.Duration  `yaml:"dedup_lookback"`   // how far back success logs gate re-dispatch
	PredictionModel string         `yaml:"prediction_model"` // model selector sent with prediction dispatches
	WebhookSecret   string         `yaml:"webhook_secret"`
	Webhooks        WebhooksConfig `yaml:"webhooks"`
}

type WebhooksConfig struct {
	PreMatch   WebhookConfig `yaml:"pre_match"`
	Prediction WebhookConfig `yaml:"prediction"`
	Live       WebhookConfig `yaml:"live"`
	PostMatch  WebhookConfig `yaml:"post_match"`
	Analysis   WebhookConfig `yaml:"analysis"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

func Load() *Config {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// GetDefaultConfig returns the built-in defaults used when no config file is
// present (tests, local runs).
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "matchpulse",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 3600 * time.Second,
		},
		JWT: JWTConfig{
			Secret:    "change-me",
			ExpiresIn: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "logs/matchpulse.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "matchpulse",
			},
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
			},
			RateLimiting: RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		SportsAPI: SportsAPIConfig{
			BaseURL:    "https://api.sportsdata.example",
			Timeout:    15 * time.Second,
			MaxRetries: 2,
		},
		Automation: AutomationConfig{
			CadenceMinutes:  5,
			RunBudget:       2 * time.Minute,
			DedupLookback:   48 * time.Hour,
			PredictionModel: "gpt-4o",
			Webhooks: WebhooksConfig{
				PreMatch:   WebhookConfig{Timeout: 30 * time.Second},
				Prediction: WebhookConfig{Timeout: 3 * time.Minute},
				Live:       WebhookConfig{Timeout: 30 * time.Second},
				PostMatch:  WebhookConfig{Timeout: 45 * time.Second},
				Analysis:   WebhookConfig{Timeout: 5 * time.Minute},
			},
		},
	}
}
