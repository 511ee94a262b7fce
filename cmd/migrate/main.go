package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"matchpulse/internal/config"
	"matchpulse/internal/models"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			getenvDefault("DB_HOST", cfg.Database.Host),
			getenvDefault("DB_USER", cfg.Database.User),
			getenvDefault("DB_PASSWORD", cfg.Database.Password),
			getenvDefault("DB_NAME", cfg.Database.Name),
			cfg.Database.Port,
			getenvDefault("DB_SSLMODE", "disable"),
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	err = db.AutoMigrate(
		&models.User{},
		&models.League{},
		&models.Team{},
		&models.Fixture{},
		&models.Standing{},
		&models.Prediction{},
		&models.MatchAnalysis{},
		&models.AutomationConfig{},
		&models.AutomationLog{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// Window queries filter on status and kickoff together.
	db.Exec("CREATE INDEX IF NOT EXISTS idx_fixtures_status_kickoff ON fixtures(status, kickoff_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_fixtures_league_kickoff ON fixtures(league_id, kickoff_at)")

	// Audit lookups are by trigger type + outcome within a time range.
	db.Exec("CREATE INDEX IF NOT EXISTS idx_automation_logs_type_outcome ON automation_logs(trigger_type, outcome, triggered_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_automation_logs_run_id ON automation_logs(run_id)")

	db.Exec("CREATE INDEX IF NOT EXISTS idx_predictions_fixture ON predictions(fixture_id)")

	log.Println("Additional indexes created successfully!")

	if len(os.Args) > 1 && os.Args[1] == "--seed" {
		log.Println("Seeding default data...")
		seedDefaultData(db)
		log.Println("Default data seeded successfully!")
	}

	log.Println("Migration process completed!")
}

func seedDefaultData(db *gorm.DB) {
	var adminUser models.User
	if err := db.Where("username = ?", "admin").First(&adminUser).Error; err != nil {
		adminUser = models.User{
			Username: "admin",
			Email:    "admin@matchpulse.local",
			Name:     "Administrator",
			Role:     "admin",
			Status:   "active",
		}
		db.Create(&adminUser)
		log.Println("Created default admin user")
	}

	var cfg models.AutomationConfig
	if err := db.Order("id").First(&cfg).Error; err != nil {
		cfg = models.DefaultAutomationConfig()
		db.Create(&cfg)
		log.Println("Created default automation config")
	}

	var league models.League
	if err := db.Where("name = ?", "Premier League").First(&league).Error; err != nil {
		league = models.League{
			ExternalID: 39,
			Name:       "Premier League",
			Country:    "England",
			Season:     fmt.Sprintf("%d", time.Now().UTC().Year()),
			Active:     true,
		}
		db.Create(&league)
		log.Println("Created sample league")
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
