// Package main initializes and starts the ResQWave development backend,
// setting up configuration, logging, database connections, repositories,
// services, handlers, and optional TLS.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/ResQWave/internal/config"
	"github.com/atinyakov/ResQWave/internal/db"
	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/metrics"
	"github.com/atinyakov/ResQWave/internal/repository"
	"github.com/atinyakov/ResQWave/internal/server/handler/http"
	"github.com/atinyakov/ResQWave/internal/service"
	"github.com/atinyakov/ResQWave/internal/token"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// demoAccount is seeded when -seed-password is set.
var demoAccount = db.DemoAccount{
	UserID: "FP001",
	Name:   "Juan Dela Cruz",
	Email:  "focal@resqwave.ph",
	Phone:  "09123456789",
}

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	lg := logger.New()
	if err := lg.Init(options.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()
	zapLogger := lg.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	if options.SeedPassword != "" {
		if err := seed(ctx, postgresDB, options.SeedPassword); err != nil {
			zapLogger.Fatal("cannot seed demo data", zap.Error(err))
		}
		zapLogger.Info("demo account ready", zap.String("email", demoAccount.Email), zap.String("phone", demoAccount.Phone))
	}

	// Remove expired pending logins, revocations and lockouts.
	db.StartExpiredStateCleaner(ctx, postgresDB, options.CleanInterval, zapLogger)

	// Initialize repositories.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	hoodRepo := repository.NewPostgresNeighborhoodRepository(postgresDB)

	// Initialize business-logic services.
	tokens := token.NewManager(options.JWTSecret, options.SessionTTL)
	m := metrics.New()
	authService := service.NewAuthService(
		authRepo,
		tokens,
		service.NewLogSender(zapLogger),
		m,
		service.AuthConfig{
			OTPTTL:            options.OTPTTL,
			ResendInterval:    options.ResendInterval,
			MaxFailedAttempts: options.MaxFailedAttempts,
			MaxCodeAttempts:   options.MaxCodeAttempts,
			LockDuration:      options.LockDuration,
		},
		zapLogger,
	)
	hoodService := service.NewNeighborhoodService(hoodRepo)

	// Build the router with middleware and routes.
	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService},
		&http.NeighborhoodHandler{NeighborhoodService: hoodService},
		m.Handler(),
		tokens,
		authRepo,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}

// seed inserts the demo account with password and its neighborhoods.
func seed(ctx context.Context, conn *sql.DB, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	acc := demoAccount
	acc.PasswordHash = string(hash)
	return db.SeedDemo(ctx, conn, acc)
}

// orDefault returns v, or def when v is empty (Go 1.21 stand-in for cmp.Or).
func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
