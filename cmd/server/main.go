package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valyala/fasthttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	apiHandler "github.com/farmchain/backend/api/handler"
	"github.com/farmchain/backend/internal/config"
	"github.com/farmchain/backend/internal/infrastructure/buffer"
	ledgerInfra "github.com/farmchain/backend/internal/infrastructure/ledger"
	mongoInfra "github.com/farmchain/backend/internal/infrastructure/mongo"
	"github.com/farmchain/backend/internal/infrastructure/monitor"
	pgInfra "github.com/farmchain/backend/internal/infrastructure/postgres"
	redisInfra "github.com/farmchain/backend/internal/infrastructure/redis"
	"github.com/farmchain/backend/internal/middleware"
	"github.com/farmchain/backend/internal/router"
	"github.com/farmchain/backend/internal/services"
	"github.com/farmchain/backend/internal/services/lifecycle"
	"github.com/farmchain/backend/pkg/httpcontext"
	"github.com/farmchain/backend/pkg/logger"
	"github.com/farmchain/backend/repository"
	mongoRepo "github.com/farmchain/backend/repository/mongo"
	pgRepo "github.com/farmchain/backend/repository/postgres"
	redisRepo "github.com/farmchain/backend/repository/redis"
	reconcileUC "github.com/farmchain/backend/usecase/reconcile"
	registryUC "github.com/farmchain/backend/usecase/registry"
	walletUC "github.com/farmchain/backend/usecase/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	gateway := ledgerInfra.NewGateway(cfg.Ledger.GatewayURL, cfg.Ledger.Timeout, zapLogger)

	// Cache-disabled mode: without a Mongo URI every read goes straight
	// to the ledger and the listener stays off.
	var mongoClient *mongo.Client
	var cacheStore repository.CacheStore
	if cfg.CacheEnabled() {
		client, err := mongoInfra.NewClient(cfg.Mongo, zapLogger)
		if err != nil {
			zapLogger.Fatal("mongodb connection failed", zap.Error(err))
		}
		mongoClient = client
		manager.Register("mongodb", func(ctx context.Context) error {
			return mongoClient.Disconnect(ctx)
		})

		db := mongoInfra.Database(mongoClient, cfg.Mongo)
		if err := mongoRepo.EnsureIndexes(appCtx, db); err != nil {
			zapLogger.Warn("failed to ensure cache indexes", zap.Error(err))
		}
		cacheStore = mongoRepo.NewCacheStore(db)
	} else {
		zapLogger.Info("document cache disabled, serving reads from the ledger")
	}

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL)

	var pgPool *pgxpool.Pool
	var journalRepo repository.JournalRepository
	if cfg.Journal.Enabled {
		if cfg.Migrations.Enabled {
			if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
				zapLogger.Fatal("journal migrations failed", zap.Error(err))
			}
		}
		pgPool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgPool.Close()
			return nil
		})
		journalRepo = pgRepo.NewJournalRepository(pgPool)
	}

	pendingStore, err := buffer.Open(cfg.Buffer.Path, "pending_upserts")
	if err != nil {
		zapLogger.Fatal("failed to open pending buffer", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return pendingStore.Close()
	})

	mon := monitor.New(mongoClient, redisClient, pgPool, gateway, pendingStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	reconcileService := reconcileUC.New(cacheStore, gateway, journalRepo, zapLogger)
	manager.Register("write_backs", func(ctx context.Context) error {
		reconcileService.WaitWriteBacks()
		return nil
	})

	walletUseCase := walletUC.New(sessionRepo, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, zapLogger)
	registryUseCase := registryUC.New(gateway, cfg.Ledger.NetworkID, zapLogger)

	listener := services.NewCreationListener(gateway, cacheStore, journalRepo, pendingStore, cfg.Ledger.PollInterval, zapLogger)
	listener.Start(appCtx)
	manager.Register("creation_listener", func(ctx context.Context) error {
		listener.Stop(ctx)
		return nil
	})

	bufferProcessor := services.NewBufferProcessor(pendingStore, mon, cacheStore, zapLogger, services.ProcessorConfig{
		Interval:   cfg.Buffer.SyncInterval,
		BatchSize:  50,
		MaxRetries: cfg.Buffer.MaxRetry,
	})
	if cacheStore != nil {
		bufferProcessor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			bufferProcessor.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Product: apiHandler.NewProductHandler(reconcileService, registryUseCase, walletUseCase, ctxAdapter, zapLogger),
		Wallet:  apiHandler.NewWalletHandler(walletUseCase, ctxAdapter, zapLogger),
		Journal: apiHandler.NewJournalHandler(journalRepo, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.SessionAuth(cfg.Auth.JWTSecret, cfg.Auth.Enabled, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
