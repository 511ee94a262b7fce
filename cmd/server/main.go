package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"matchpulse/internal/config"
	"matchpulse/internal/handlers"
	"matchpulse/internal/middleware"
	"matchpulse/internal/models"
	"matchpulse/internal/observability"
	"matchpulse/internal/services"
	"matchpulse/pkg/sportsapi"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	// Read config.yml from the working directory, env vars override.
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	// Flags/env can override the database connection, same interface as
	// the migrate command.
	var (
		flagDSN   string
		dbHost    string
		dbPortStr string
		dbUser    string
		dbPass    string
		dbName    string
		dbSSLMode string
		dbTZ      string
		srvHost   string
		srvPort   int
	)
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	flagSet.StringVar(&flagDSN, "dsn", os.Getenv("DB_DSN"), "Postgres DSN, if set overrides other DB flags")
	flagSet.StringVar(&dbHost, "db-host", getenvDefault("DB_HOST", cfg.Database.Host), "database host")
	flagSet.StringVar(&dbPortStr, "db-port", getenvDefault("DB_PORT", fmt.Sprintf("%d", cfg.Database.Port)), "database port")
	flagSet.StringVar(&dbUser, "db-user", getenvDefault("DB_USER", cfg.Database.User), "database user")
	flagSet.StringVar(&dbPass, "db-pass", getenvDefault("DB_PASSWORD", cfg.Database.Password), "database password")
	flagSet.StringVar(&dbName, "db-name", getenvDefault("DB_NAME", cfg.Database.Name), "database name")
	flagSet.StringVar(&dbSSLMode, "db-sslmode", getenvDefault("DB_SSLMODE", "disable"), "sslmode (disable, require, verify-ca, verify-full)")
	flagSet.StringVar(&dbTZ, "db-timezone", getenvDefault("DB_TIMEZONE", "UTC"), "database timezone")
	flagSet.StringVar(&srvHost, "host", getenvDefault("MATCHPULSE_HOST", cfg.Server.Host), "server host (listen)")
	flagSet.IntVar(&srvPort, "port", func() int {
		if p := os.Getenv("MATCHPULSE_PORT"); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				return n
			}
		}
		return cfg.Server.Port
	}(), "server port (listen)")
	_ = flagSet.Parse(os.Args[1:])

	dsn := flagDSN
	if dsn == "" {
		host := firstNonEmpty(dbHost, cfg.Database.Host)
		user := firstNonEmpty(dbUser, cfg.Database.User)
		pass := firstNonEmpty(dbPass, cfg.Database.Password)
		name := firstNonEmpty(dbName, cfg.Database.Name)
		port := dbPortStr
		if port == "" && cfg.Database.Port != 0 {
			port = fmt.Sprintf("%d", cfg.Database.Port)
		}
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", host, user, pass, name, port, dbSSLMode, dbTZ)
	}
	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	shutdownOTel, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.User{}, &models.League{}, &models.Team{}, &models.Fixture{}, &models.Standing{},
		&models.Prediction{}, &models.MatchAnalysis{},
		&models.AutomationConfig{}, &models.AutomationLog{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// Sports data provider client.
	sportsCfg := sportsapi.DefaultConfig()
	sportsCfg.BaseURL = cfg.SportsAPI.BaseURL
	sportsCfg.APIKey = cfg.SportsAPI.APIKey
	if cfg.SportsAPI.Timeout > 0 {
		sportsCfg.Timeout = cfg.SportsAPI.Timeout
	}
	if cfg.SportsAPI.MaxRetries > 0 {
		sportsCfg.MaxRetries = cfg.SportsAPI.MaxRetries
	}
	sportsClient := sportsapi.NewClient(sportsCfg, appLogger)

	// Live hub for dashboard push.
	hub := services.NewLiveHub()
	go hub.Run()

	// Core services.
	auditService := services.NewAuditService(db, appLogger)
	configService := services.NewAutomationConfigService(db, appLogger)
	windowService := services.NewWindowService(db, auditService, cfg.Automation.DedupLookback, appLogger)
	dispatchService := services.NewDispatchService(cfg.Automation, appLogger)
	fixtureService := services.NewFixtureService(db, appLogger)
	leagueService := services.NewLeagueService(db, appLogger)
	predictionService := services.NewPredictionService(db, appLogger)
	estimatorService := services.NewEstimatorService(db, appLogger)
	triggerService := services.NewTriggerService(
		configService, windowService, dispatchService, auditService,
		fixtureService, sportsClient, hub, cfg.Automation, appLogger,
	)

	// Seed the automation config row so the first scheduled run finds it.
	if _, err := configService.Ensure(context.Background()); err != nil {
		appLogger.Fatalf("Failed to seed automation config: %v", err)
	}

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddlewareWithConfig(cfg))
	r.Use(middleware.RateLimitMiddleware(cfg))
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}

	healthHandler := handlers.NewHealthHandler(cfg, db, sportsClient, hub)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	aggregator := handlers.NewMetricsAggregator()

	v1 := r.Group("/api/v1")
	{
		// Read surfaces are open to any authenticated caller with read
		// permission, mutation requires write.
		authed := v1.Group("/")
		authed.Use(middleware.AuthMiddleware(cfg))

		leaguesAPI := authed.Group("/")
		leaguesAPI.Use(middleware.RequireResourcePermission("leagues"))
		handlers.RegisterLeagueRoutes(leaguesAPI, handlers.NewLeagueHandler(leagueService, fixtureService, sportsClient, appLogger))

		fixturesAPI := authed.Group("/")
		fixturesAPI.Use(middleware.RequireResourcePermission("fixtures"))
		handlers.RegisterFixtureRoutes(fixturesAPI, handlers.NewFixtureHandler(fixtureService))

		predictionsAPI := authed.Group("/")
		predictionsAPI.Use(middleware.RequireResourcePermission("predictions"))
		handlers.RegisterPredictionRoutes(predictionsAPI, handlers.NewPredictionHandler(predictionService))

		automationAPI := authed.Group("/")
		automationAPI.Use(middleware.RequireRolesAny("admin", "service"))
		handlers.RegisterAutomationRoutes(automationAPI, handlers.NewAutomationHandler(
			triggerService, configService, auditService, estimatorService, appLogger,
		))

		// Live score stream for the dashboard.
		wsHandler := handlers.NewLiveWSHandler(hub)
		v1.GET("/ws/live", wsHandler.HandleWebSocket)
		v1.GET("/ws/stats", wsHandler.GetStats)

		// Lightweight client-side metric reporting.
		v1.POST("/metrics/ingest", handlers.NewMetricsIngestHandler(aggregator).Ingest)
		if cfg.Monitoring.Enabled {
			v1.GET("/metrics", handlers.NewMetricsHandler(aggregator).Snapshot)
		}
	}

	host := firstNonEmpty(srvHost, cfg.Server.Host)
	port := srvPort
	if port == 0 {
		port = cfg.Server.Port
	}
	listenAddr := fmt.Sprintf("%s:%d", host, port)

	srv := &http.Server{Addr: listenAddr, Handler: r}
	go func() {
		appLogger.Infof("Starting server on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}
	appLogger.Info("Server exited")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func corsMiddlewareWithConfig(cfg *config.Config) gin.HandlerFunc {
	allowedOrigins := "*"
	allowedMethods := "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders := "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization"
	if cfg != nil && cfg.Security.CORS.Enabled {
		if len(cfg.Security.CORS.AllowedOrigins) > 0 {
			allowedOrigins = strings.Join(cfg.Security.CORS.AllowedOrigins, ", ")
		}
		if len(cfg.Security.CORS.AllowedMethods) > 0 {
			allowedMethods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
		}
		if len(cfg.Security.CORS.AllowedHeaders) > 0 {
			allowedHeaders = strings.Join(cfg.Security.CORS.AllowedHeaders, ", ")
		}
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
