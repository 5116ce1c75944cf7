package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lmoreira/opsight/internal/analysis"
	"github.com/lmoreira/opsight/internal/auth"
	"github.com/lmoreira/opsight/internal/config"
	"github.com/lmoreira/opsight/internal/event"
	"github.com/lmoreira/opsight/internal/server"
	"github.com/lmoreira/opsight/internal/store"
	"github.com/lmoreira/opsight/internal/version"
	"github.com/lmoreira/opsight/internal/webhook"
	"github.com/lmoreira/opsight/internal/ws"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "analyze":
			runAnalyze(os.Args[2:])
			return
		case "hash-password":
			runHashPassword(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Opsight server starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database and apply migrations.
	dbPath := v.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CheckVersion(ctx, version.Version); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}

	analysisStore := analysis.NewStore(db)
	if err := analysisStore.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate analysis schema", zap.Error(err))
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared event bus.
	bus := event.NewBus(logger.Named("event"))

	// Analysis pipeline: series come from the export log on disk,
	// re-parsed on every run.
	analysisCfg := analysis.ConfigFromViper(v)
	source := analysis.FileSource(v.GetString("input.path"))
	pipeline := analysis.NewPipeline(source, analysisStore, bus, logger.Named("analysis"), analysisCfg)
	analysisHandler := analysis.NewHandler(pipeline, analysisStore, source, analysisCfg, logger.Named("analysis"))

	logger.Info("analysis pipeline initialized",
		zap.String("component", "analysis"),
		zap.String("input", v.GetString("input.path")),
		zap.Int("scoring_max_lag", analysisCfg.ScoringMaxLag),
		zap.Float64("threshold_multiplier", analysisCfg.ThresholdMultiplier),
	)

	// Optional periodic re-analysis.
	var scheduler *analysis.Scheduler
	if analysisCfg.Interval > 0 {
		scheduler = analysis.NewScheduler(pipeline, analysisCfg.Interval, logger.Named("scheduler"))
		scheduler.Start(ctx)
	}

	// Optional authentication.
	var tokens *auth.TokenService
	var authMW func(http.Handler) http.Handler
	registrars := []server.RouteRegistrar{analysisHandler}
	if v.GetBool("auth.enabled") {
		jwtSecret := v.GetString("auth.jwt_secret")
		if jwtSecret == "" {
			// Generate an ephemeral secret -- tokens won't survive restarts.
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				logger.Fatal("failed to generate JWT secret", zap.Error(err))
			}
			jwtSecret = hex.EncodeToString(b)
			logger.Info("using auto-generated JWT secret (set auth.jwt_secret in config to persist sessions across restarts)",
				zap.String("component", "auth"),
			)
		}

		accessTTL := v.GetDuration("auth.access_token_ttl")
		if accessTTL == 0 {
			accessTTL = 15 * time.Minute
		}

		creds := auth.Credentials{
			Username:     v.GetString("auth.username"),
			PasswordHash: v.GetString("auth.password_hash"),
		}
		if creds.Username == "" || creds.PasswordHash == "" {
			logger.Fatal("auth.enabled requires auth.username and auth.password_hash")
		}

		tokens = auth.NewTokenService([]byte(jwtSecret), accessTTL)
		registrars = append(registrars, auth.NewHandler(tokens, creds, logger.Named("auth")))
		authMW = auth.Middleware(tokens)
		logger.Info("authentication enabled",
			zap.String("component", "auth"),
			zap.Duration("access_token_ttl", accessTTL),
		)
	}

	// WebSocket streaming of analysis events.
	wsHandler := ws.NewHandler(tokens, bus, logger.Named("ws"))
	registrars = append(registrars, wsHandler)

	// Webhook notifications for anomalies and completed runs.
	webhookCfg := webhook.Config{
		URL:     v.GetString("webhook.url"),
		Timeout: v.GetDuration("webhook.timeout"),
		Enabled: v.GetBool("webhook.enabled"),
	}
	if webhookCfg.Enabled {
		webhook.New(webhookCfg, logger.Named("webhook")).Subscribe(bus)
	}

	// HTTP server.
	srvCfg := server.Config{
		Host: v.GetString("server.host"),
		Port: v.GetInt("server.port"),
	}
	addr := srvCfg.Addr()
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, logger.Named("server"), readyCheck, authMW, registrars...)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("Opsight server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("Opsight server stopped")
}
