package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"matchpulse/internal/config"
	"matchpulse/internal/services"
	"matchpulse/pkg/sportsapi"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var triggerSkipLive bool

// triggerCmd runs one automation pass directly against the database,
// bypassing the HTTP surface. Meant for cron setups that prefer a process
// over an authenticated HTTP call.
var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run one automation pass and print the run summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := config.InitLogger(cfg); err != nil {
			logrus.Warnf("init logger: %v", err)
		}
		appLogger := logrus.StandardLogger()

		dsn := os.Getenv("DB_DSN")
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
				cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
		}
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}

		var sports sportsapi.SportsDataInterface
		if !triggerSkipLive {
			sportsCfg := sportsapi.DefaultConfig()
			sportsCfg.BaseURL = cfg.SportsAPI.BaseURL
			sportsCfg.APIKey = cfg.SportsAPI.APIKey
			if cfg.SportsAPI.Timeout > 0 {
				sportsCfg.Timeout = cfg.SportsAPI.Timeout
			}
			sports = sportsapi.NewClient(sportsCfg, appLogger)
		}

		audit := services.NewAuditService(db, appLogger)
		configSvc := services.NewAutomationConfigService(db, appLogger)
		windows := services.NewWindowService(db, audit, cfg.Automation.DedupLookback, appLogger)
		dispatcher := services.NewDispatchService(cfg.Automation, appLogger)
		fixtures := services.NewFixtureService(db, appLogger)
		trigger := services.NewTriggerService(
			configSvc, windows, dispatcher, audit,
			fixtures, sports, nil, cfg.Automation, appLogger,
		)

		summary, err := trigger.Run(context.Background())
		if err != nil {
			return fmt.Errorf("automation run failed: %w", err)
		}

		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
		if summary.Status == "error" {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.Flags().BoolVar(&triggerSkipLive, "skip-live-refresh", false, "skip the provider live refresh before the live phase")
}
