package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/whistleblower-api/api/swagger"
	"github.com/noah-isme/whistleblower-api/internal/handler"
	"github.com/noah-isme/whistleblower-api/internal/repository"
	"github.com/noah-isme/whistleblower-api/internal/service"
	"github.com/noah-isme/whistleblower-api/migrations"
	"github.com/noah-isme/whistleblower-api/pkg/broker"
	"github.com/noah-isme/whistleblower-api/pkg/cache"
	"github.com/noah-isme/whistleblower-api/pkg/config"
	"github.com/noah-isme/whistleblower-api/pkg/database"
	"github.com/noah-isme/whistleblower-api/pkg/jobs"
	"github.com/noah-isme/whistleblower-api/pkg/logger"
	"github.com/noah-isme/whistleblower-api/pkg/security"
	"github.com/noah-isme/whistleblower-api/pkg/storage"
	"github.com/noah-isme/whistleblower-api/pkg/whatsapp"
)

// @title Whistleblower Intake API
// @version 1.0.0
// @description Anonymous report intake, tracking and administration
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

// dbPinger adapts sqlx to the readiness check contract.
type dbPinger struct{ db *sqlx.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, migrations.Files); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and rate limiting", zap.Error(err))
		redisClient = nil
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init evidence storage", zap.Error(err))
	}

	sealKey, err := security.KeyFromConfig(cfg.WhatsApp.SenderKey, cfg.JWT.Secret)
	if err != nil {
		logr.Fatal("failed to derive sender sealing key", zap.Error(err))
	}
	sealer, err := security.NewSealer(sealKey)
	if err != nil {
		logr.Fatal("failed to init sender sealer", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	hub := service.NewHub(logr, metrics)

	reportRepo := repository.NewReportRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	rateLimitRepo := repository.NewRateLimitRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:     cfg.JWT.Secret,
		AccessTokenExpiry:     cfg.JWT.Expiration,
		Issuer:                cfg.JWT.Issuer,
		AllowOpenRegistration: cfg.Auth.AllowOpenRegistration,
	})
	reportSvc := service.NewReportService(reportRepo, userRepo, hub, sealer, cacheSvc, metrics, validate, logr, cfg.Stats.CacheTTL)
	exportSvc := service.NewExportService(reportSvc, logr, nil, nil)
	evidenceSvc := service.NewEvidenceService(evidenceRepo, reportSvc, blobs,
		storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL),
		hub, metrics, logr, service.EvidenceConfig{
			MaxFileSize:  cfg.Evidence.MaxFileSizeBytes,
			AllowedTypes: cfg.Evidence.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		})
	whatsappSvc := service.NewWhatsAppService(reportSvc, whatsapp.NewSender(cfg.WhatsApp, logr), metrics, logr, service.WhatsAppConfig{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		SendTimeout: cfg.WhatsApp.SendTimeout,
	})

	dispatcher := service.NewOutboundDispatcher(whatsappSvc, sealer, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		BufferSize: cfg.Notifications.QueueBuffer,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		JobTimeout: cfg.WhatsApp.SendTimeout,
	}, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	reportSvc.SetStatusNotifier(dispatcher)

	if cfg.Events.Enabled {
		bridge, closeBroker, err := startEventBridge(cfg.Events, metrics, logr)
		if err != nil {
			logr.Warn("event bridge disabled", zap.Error(err))
		} else {
			hub.Subscribe(bridge)
			defer closeBroker()
		}
	}

	checks := map[string]handler.Pinger{"database": dbPinger{db: db}}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:          cfg.APIPrefix,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		EnableDocs:         cfg.Env != config.EnvProduction,
		RateLimit:          cfg.RateLimit,
		MaxMultipartMemory: cfg.Evidence.MaxFileSizeBytes,
	}, handler.RouterDeps{
		Logger:   logr,
		Metrics:  metrics,
		Tokens:   authSvc,
		Limiter:  rateLimitRepo,
		Webhook:  whatsappSvc,
		Auth:     handler.NewAuthHandler(authSvc),
		Reports:  handler.NewReportHandler(reportSvc, exportSvc),
		Evidence: handler.NewEvidenceHandler(evidenceSvc, cfg.Evidence.MaxFileSizeBytes),
		WhatsApp: handler.NewWhatsAppHandler(whatsappSvc),
		WS:       handler.NewWSHandler(hub, cfg.CORS.AllowedOrigins, logr),
		Ops:      handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Evidence.StorageDriver {
	case config.StorageDriverMinio:
		return storage.NewMinioStorage(ctx, cfg.Evidence.Minio)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.Evidence.StorageDir)
	default:
		return nil, fmt.Errorf("unknown evidence storage driver %q", cfg.Evidence.StorageDriver)
	}
}

// startEventBridge connects to RabbitMQ and returns a running bridge plus a
// cleanup func that stops it and closes the connection.
func startEventBridge(cfg config.EventsConfig, metrics *service.MetricsService, logr *zap.Logger) (*broker.Bridge, func(), error) {
	conn, ch, err := broker.Connect(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, err
	}
	bridge, err := broker.NewBridge(ch, cfg.Exchange, cfg.BufferSize, logr, broker.WithDropHook(metrics.DeliveryDropped))
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	bridge.Start()
	logr.Info("event bridge started", zap.String("exchange", cfg.Exchange))

	return bridge, func() {
		bridge.Stop()
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
