package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appsync "github.com/syncbridge/backend/internal/application/sync"
	appwebhook "github.com/syncbridge/backend/internal/application/webhook"
	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/crm"
	"github.com/syncbridge/backend/internal/infrastructure/erp"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
	"github.com/syncbridge/backend/internal/infrastructure/queue"
	"github.com/syncbridge/backend/internal/infrastructure/scheduler"
	"github.com/syncbridge/backend/internal/interfaces/http/handler"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sync bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database ready")

	syncLogRepo := persistence.NewSyncLogRepository(db.DB)

	// Remote gateways
	erpClient, err := erp.NewClient(&erp.Config{
		BaseURL:            cfg.ERP.BaseURL,
		Username:           cfg.ERP.Username,
		Password:           cfg.ERP.Password,
		BearerToken:        cfg.ERP.BearerToken,
		APIKey:             cfg.ERP.APIKey,
		TimeoutSeconds:     cfg.ERP.TimeoutSeconds,
		RateLimitPerMinute: cfg.ERP.RateLimitPerMinute,
		DefaultCompanyID:   cfg.ERP.DefaultCompanyID,
		DefaultSellerID:    cfg.ERP.DefaultSellerID,
	}, log)
	if err != nil {
		log.Fatal("Failed to create ERP client", zap.Error(err))
	}

	crmClient, err := crm.NewClient(&crm.Config{
		BaseURL:            cfg.CRM.BaseURL,
		AuthURL:            cfg.CRM.AuthURL,
		ClientID:           cfg.CRM.ClientID,
		ClientSecret:       cfg.CRM.ClientSecret,
		RefreshToken:       cfg.CRM.RefreshToken,
		TimeoutSeconds:     cfg.CRM.TimeoutSeconds,
		RateLimitPerMinute: cfg.CRM.RateLimitPerMinute,
		RefreshLeadSeconds: cfg.CRM.RefreshLeadSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create CRM client", zap.Error(err))
	}

	// Optional event dedup store
	var dedupStore integration.EventDedupStore
	if cfg.Webhook.DedupEnabled {
		if cfg.Redis.Enabled {
			store, err := cache.NewRedisEventStore(cache.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				log.Fatal("Failed to connect to redis", zap.Error(err))
			}
			dedupStore = store
		} else {
			dedupStore = cache.NewInMemoryEventStore()
			log.Warn("Webhook dedup using in-memory store; duplicates are only suppressed per process")
		}
		defer func() {
			if err := dedupStore.Close(); err != nil {
				log.Error("Error closing dedup store", zap.Error(err))
			}
		}()
	}

	// Application services
	syncService, err := appsync.NewService(erpClient, crmClient, syncLogRepo,
		appsync.Config{OrderLookback: cfg.Sync.OrderLookback}, log)
	if err != nil {
		log.Fatal("Failed to create sync service", zap.Error(err))
	}
	resolver := appsync.NewResolver(erpClient)

	dispatcher, err := appwebhook.NewDispatcher(erpClient, crmClient, syncLogRepo, resolver,
		dedupStore, appwebhook.Config{
			Secret:            cfg.Webhook.Secret,
			ValidateSignature: cfg.Webhook.ValidateSignature,
			DedupEnabled:      cfg.Webhook.DedupEnabled,
			DedupTTL:          cfg.Webhook.DedupTTL,
			DefaultPartnerID:  cfg.Webhook.DefaultPartnerID,
			DefaultProductID:  cfg.Webhook.DefaultProductID,
		}, log)
	if err != nil {
		log.Fatal("Failed to create webhook dispatcher", zap.Error(err))
	}

	// Job queue
	jobQueue := queue.New(queue.Config{
		Workers:     cfg.Queue.Workers,
		BufferSize:  cfg.Queue.BufferSize,
		MaxRetries:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		MaxInterval: cfg.Queue.MaxInterval,
	}, log)
	appsync.NewJobHandlers(erpClient, crmClient, syncLogRepo, log).Register(jobQueue)
	if err := jobQueue.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job queue", zap.Error(err))
	}

	// Webhook subscriptions on the CRM side
	if cfg.Webhook.CallbackURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := crmClient.SetupWebhooks(ctx, cfg.Webhook.CallbackURL); err != nil {
			log.Warn("Failed to set up CRM webhook subscriptions", zap.Error(err))
		}
		cancel()
	}

	// Scheduled sync routines
	var trigger *scheduler.SyncTrigger
	if cfg.Sync.Enabled {
		trigger = scheduler.NewSyncTrigger(log)
		trigger.AddTask(scheduler.Task{
			Name:     "suppliers",
			Interval: cfg.Sync.SupplierInterval,
			Run: func(ctx context.Context) error {
				_, err := syncService.SyncSuppliers(ctx)
				return err
			},
		})
		trigger.AddTask(scheduler.Task{
			Name:     "orders",
			Interval: cfg.Sync.OrderInterval,
			Run: func(ctx context.Context) error {
				_, err := syncService.SyncOrdersAsConversions(ctx)
				return err
			},
		})
		trigger.AddTask(scheduler.Task{
			Name:     "products",
			Interval: cfg.Sync.ProductInterval,
			Run: func(ctx context.Context) error {
				_, err := syncService.SyncProductsAsTags(ctx)
				return err
			},
		})
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.DefaultCORSConfig()),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	router.NewRouter(engine).
		Register(handler.NewSystemHandler(db, version)).
		Register(handler.NewSyncHandler(syncService)).
		Register(handler.NewERPHandler(erpClient, jobQueue)).
		Register(handler.NewCRMHandler(crmClient, crmClient, jobQueue, cfg.Webhook.CallbackURL)).
		Register(handler.NewWebhookHandler(dispatcher)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(ctx); err != nil {
			log.Error("Scheduler shutdown timed out", zap.Error(err))
		}
	}
	if err := jobQueue.Stop(ctx); err != nil {
		log.Error("Queue shutdown timed out", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
