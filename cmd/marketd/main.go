package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/shambasmart/marketplace/internal/analysis"
	"github.com/shambasmart/marketplace/internal/api"
	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/internal/chat"
	"github.com/shambasmart/marketplace/internal/config"
	"github.com/shambasmart/marketplace/internal/escrow"
	"github.com/shambasmart/marketplace/internal/httpclient"
	"github.com/shambasmart/marketplace/internal/jobs"
	"github.com/shambasmart/marketplace/internal/listing"
	"github.com/shambasmart/marketplace/internal/notify"
	"github.com/shambasmart/marketplace/internal/publisher"
	"github.com/shambasmart/marketplace/internal/rate"
	internalsecrets "github.com/shambasmart/marketplace/internal/secrets"
	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/logger"
	"github.com/shambasmart/marketplace/pkg/secrets"
	"github.com/shambasmart/marketplace/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [marketd]...")

	// --- Secrets overlay (optional) ---
	stopCleaner := make(chan struct{})
	if cfg.DatabaseSecretName != "" || cfg.AISecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		secretCache := secrets.NewCache[map[string]string](cfg.CacheTTL)
		go secretCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

		resolver := internalsecrets.NewResolver(awsProvider, secretCache, logg.Desugar())
		if err := resolver.Apply(ctx, cfg); err != nil {
			logg.Fatalw("failed to resolve secrets", "error", err)
		}
	}

	// --- Store ---
	// Empty DATABASE_URL runs everything against the in-memory store for
	// local development.
	var st store.Store
	var hybrid *store.HybridStore
	if cfg.DatabaseURL == "" {
		logg.Warn("DATABASE_URL not set; using in-memory store")
		st = store.NewMemory()
	} else {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		var err error
		hybrid, err = store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		st = hybrid
	}

	// --- In-process event bus ---
	bus := eventbus.New()

	// --- NATS publisher (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err := publisher.New(nc, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		pub.Attach(bus)
	} else {
		logg.Warn("NATS_URL not set; event publishing disabled")
	}

	// --- RabbitMQ payout notifier (optional) ---
	var notifier *notify.Notifier
	if cfg.RabbitURL != "" {
		var err error
		notifier, err = notify.NewNotifier(cfg.RabbitURL, bus, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to init payout notifier", "error", err)
		}
	} else {
		logg.Warn("RABBITMQ_URL not set; payout notifications disabled")
	}

	// --- Domain services ---
	authSvc := auth.NewService(st, []byte(cfg.JWTSecret), cfg.TokenTTL, logg.Desugar())
	listingSvc := listing.NewService(st, bus, logg.Desugar())
	chatSvc := chat.NewService(st, logg.Desugar())
	coordinator := escrow.NewCoordinator(st, bus, logg.Desugar())

	// --- AI extraction client (optional) ---
	var analysisClient *analysis.Client
	if cfg.AIBaseURL != "" {
		rateMgr := rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.AIRatePerS,
			Burst:             cfg.AIRateBurst,
		})
		exec := httpclient.New(
			logg.Desugar(),
			rateMgr,
			&http.Client{Timeout: 30 * time.Second},
			cfg.AIRetryMax,
			"analysis",
			analysis.ErrorHandler,
		)
		analysisClient = analysis.NewClient(exec, cfg.AIBaseURL, cfg.AIAPIKey, logg.Desugar())
	} else {
		logg.Warn("AI_BASE_URL not set; listing analysis disabled")
	}

	// --- Market summary refresher (needs Postgres) ---
	var refresher *jobs.SummaryRefresher
	if hybrid != nil {
		refresher = jobs.NewSummaryRefresher(hybrid.Pool(), hybrid.Redis(), logg.Desugar(), cfg.SummaryRefreshInterval)
		go refresher.Run(ctx)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logg.Desugar(), authSvc, listingSvc, refresher)
	escrowHandler := api.NewEscrowHandler(logg.Desugar(), coordinator)
	chatHandler := api.NewChatHandler(logg.Desugar(), chatSvc)
	analysisHandler := api.NewAnalysisHandler(logg.Desugar(), analysisClient)

	api.RegisterRoutes(app, nc, st, authSvc, handler, escrowHandler, chatHandler, analysisHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[marketd] running",
		"env", cfg.Env,
		"nats", cfg.NATSURL,
		"port", cfg.Port)

	<-ctx.Done()
	logg.Info("shutting down [marketd]...")

	close(stopCleaner)
	if refresher != nil {
		refresher.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if notifier != nil {
		if err := notifier.Close(); err != nil {
			logg.Warnw("notifier.close_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
