// cmd/stockcheck/main.go

// Command stockcheck pulls the stock summary from a running blood bank API
// and exits with status 2 when any blood type is Critical.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodbank/internal/clients"
	"bloodbank/internal/inventory"
	"bloodbank/internal/logging"
	"bloodbank/internal/session"
)

const (
	exitOK       = 0
	exitError    = 1
	exitCritical = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL  = flag.String("url", getEnv("BLOODBANK_URL", "http://localhost:8080"), "base URL of the blood bank API")
		hospital = flag.String("hospital", "", "hospital id; logs in as that hospital instead of admin")
		timeout  = flag.Duration("timeout", 10*time.Second, "request timeout")
		retries  = flag.Int("retries", 2, "retries on transport errors and 5xx answers")
	)
	flag.Parse()

	logger, err := logging.NewLogger(getEnv("LOG_LEVEL", "warn"), "console", "stockcheck")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	login := session.LoginRequest{Role: session.RoleAdmin, Passkey: os.Getenv("ADMIN_PASSKEY")}
	if *hospital != "" {
		id, err := uuid.Parse(*hospital)
		if err != nil {
			logger.Error("invalid hospital id", zap.String("hospital", *hospital), zap.Error(err))
			return exitError
		}
		login = session.LoginRequest{Role: session.RoleHospital, HospitalID: &id, Passkey: os.Getenv("HOSPITAL_PASSKEY")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*(*timeout)*time.Duration(*retries+1))
	defer cancel()

	client := clients.NewAPIClient(clients.Config{BaseURL: *baseURL, Timeout: *timeout, RetryCount: *retries}, logger)
	if _, err := client.Login(ctx, login); err != nil {
		logger.Error("login failed", zap.Error(err))
		return exitError
	}
	summaries, err := client.Summary(ctx, login.HospitalID)
	if err != nil {
		logger.Error("stock check failed", zap.Error(err))
		return exitError
	}

	critical := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tAVAILABLE\tRESERVED\tTOTAL\tMINIMUM\tLEVEL")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", s.BloodType, s.AvailableUnits, s.ReservedUnits, s.TotalUnits, s.MinimumThreshold, s.Level)
		if s.Level == inventory.StockCritical {
			critical++
		}
	}
	w.Flush()

	if critical > 0 {
		logger.Warn("critical stock", zap.Int("types", critical))
		return exitCritical
	}
	return exitOK
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
