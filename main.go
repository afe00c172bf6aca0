package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"referral-ledger/config"
	"referral-ledger/database"
	"referral-ledger/handlers"
	"referral-ledger/logging"
	"referral-ledger/metrics"
	"referral-ledger/middleware"
	"referral-ledger/services"
	"referral-ledger/utils"
	"referral-ledger/workers"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(cfg.Logging)
	if envErr != nil {
		log.Warn().Msg("no .env file found, reading environment variables directly")
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}

	policy, err := services.ParseDebitPolicy(cfg.Rewards.PoolDebitPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid pool debit policy")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine := services.NewEngine(db, services.EngineConfig{
		Timeout: cfg.Database.Timeout,
		Policy:  policy,
		Rewards: services.Rewards{
			Referral: cfg.Rewards.ReferralBonus,
			Join:     cfg.Rewards.JoinReward,
			Follow:   cfg.Rewards.FollowReward,
		},
		InviteCodeLength: cfg.Rewards.InviteCodeLength,
		Logger:           log,
		Metrics:          m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var uploader handlers.ReportUploader
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize R2 client")
		}
		uploader = r2
	} else {
		log.Warn().Msg("R2 settings incomplete, pool report export disabled")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.HTTP.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID",
		MaxAge:       86400,
	}))

	// Probes and scrapes do not go through the gateway.
	handlers.SetupHealthRoutes(app, engine, reg)

	// Everything below requires the gateway token.
	app.Use(middleware.GatewayAuthMiddleware(cfg.Auth.ServiceToken, log))
	handlers.SetupLedgerRoutes(app, engine, log)
	handlers.SetupAdminRoutes(app, engine, cfg.Auth.IsAdmin(), uploader, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTP.Port).Str("policy", string(policy)).Msg("server listening")
		return app.Listen(":" + cfg.HTTP.Port)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		return app.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout)
	})

	if cfg.Reports.PoolReportInterval > 0 {
		worker := workers.NewPoolReportWorker(engine, m, cfg.Reports.PoolReportInterval, log)
		g.Go(func() error { return worker.Start(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
