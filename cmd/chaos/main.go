// cmd/chaos/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bloodbank/internal/chaos"
	"bloodbank/internal/clients"
	"bloodbank/internal/config"
	"bloodbank/internal/logging"
	"bloodbank/internal/platform/postgres"
	"bloodbank/internal/session"
	"bloodbank/internal/telemetry"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "base URL of the blood bank API")
		concurrency = flag.Int("concurrency", 20, "concurrent transfusion commits in the race experiment")
		connections = flag.Int("connections", 50, "database connections held in the exhaustion experiment")
		duration    = flag.Duration("duration", 30*time.Second, "observation window of each experiment")
		pause       = flag.Duration("pause", 10*time.Second, "pause between experiments")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "bloodbank-chaos")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, "bloodbank-chaos")
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	db, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	api := clients.NewAPIClient(clients.Config{BaseURL: *baseURL, Timeout: 10 * time.Second}, logger)
	if _, err := api.Login(ctx, session.LoginRequest{Role: session.RoleAdmin, Passkey: cfg.Auth.AdminPasskey}); err != nil {
		logger.Fatal("failed to log in", zap.Error(err))
	}

	engine := chaos.NewEngine(logger)
	engine.RegisterDefaults(chaos.NewPostgresProbe(db), api, chaos.Settings{
		Concurrency:     *concurrency,
		HeldConnections: *connections,
		Duration:        *duration,
		SampleInterval:  time.Second,
	})

	held, err := engine.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "Blood bank game day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     *pause,
	})
	if err != nil {
		logger.Fatal("game day interrupted", zap.Error(err))
	}
	if !held {
		logger.Error("game day finished with violated hypotheses")
		os.Exit(2)
	}
	logger.Info("game day finished; all hypotheses held")
}
