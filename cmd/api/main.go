// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bloodbank/internal/alert"
	"bloodbank/internal/cache"
	"bloodbank/internal/campaign"
	"bloodbank/internal/config"
	"bloodbank/internal/dashboard"
	"bloodbank/internal/donation"
	"bloodbank/internal/donor"
	"bloodbank/internal/hospital"
	"bloodbank/internal/inventory"
	"bloodbank/internal/logging"
	"bloodbank/internal/patient"
	"bloodbank/internal/platform/postgres"
	"bloodbank/internal/server"
	"bloodbank/internal/session"
	"bloodbank/internal/telemetry"
	"bloodbank/internal/transfusion"
	"bloodbank/pkg/eventstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	db, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	redisClient, err := cache.Connect(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	store := cache.NewStore(redisClient)

	alerts, err := alert.New(cfg.MQTT, logger)
	if err != nil {
		return err
	}
	defer alerts.Close()

	es := eventstore.NewEventStore(db)

	hospitals := hospital.NewService(hospital.NewPostgresRepository(db, es), logger)
	sessions, err := session.NewService(store, hospitals, cfg.Auth, logger)
	if err != nil {
		return err
	}
	donors := donor.NewService(donor.NewPostgresRepository(db, es), logger)
	campaigns := campaign.NewService(campaign.NewPostgresRepository(db, es), logger)
	patients := patient.NewService(patient.NewPostgresRepository(db, es), logger)
	donations := donation.NewService(donation.NewPostgresRepository(db, es), logger)
	units := inventory.NewService(inventory.NewPostgresRepository(db, es), logger, cfg.Inventory.MinimumThreshold)
	transfusions, err := transfusion.NewService(transfusion.NewPostgresRepository(db, es), units, patients, store, alerts, logger)
	if err != nil {
		return err
	}
	stats := dashboard.NewService(donors, donations, units, logger)

	router := server.NewRouter(server.Handlers{
		Session:     session.NewHandler(sessions, logger),
		Hospital:    hospital.NewHandler(hospitals, logger),
		Donor:       donor.NewHandler(donors, logger),
		Campaign:    campaign.NewHandler(campaigns, logger),
		Patient:     patient.NewHandler(patients, logger),
		Donation:    donation.NewHandler(donations, logger),
		Inventory:   inventory.NewHandler(units, logger),
		Transfusion: transfusion.NewHandler(transfusions, logger),
		Dashboard:   dashboard.NewHandler(stats, logger),
	}, map[string]server.Pinger{
		"postgres": db,
		"redis":    store,
	}, logger)

	return server.Run(ctx, ":"+cfg.Port, router, 15*time.Second, logger)
}
