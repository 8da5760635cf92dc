package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_pos/internal/catalog"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/circuitbreaker"
	"github.com/fjod/go_pos/internal/config"
	"github.com/fjod/go_pos/internal/consumer"
	h "github.com/fjod/go_pos/internal/http"
	"github.com/fjod/go_pos/internal/inventory"
	"github.com/fjod/go_pos/internal/logger"
	"github.com/fjod/go_pos/internal/money"
	"github.com/fjod/go_pos/internal/publisher"
	"github.com/fjod/go_pos/internal/sales"
	"github.com/fjod/go_pos/internal/session"
	"github.com/fjod/go_pos/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "pos-api", cfg.TraceExporter, cfg.OTLPEndpoint)
	if err != nil {
		zl.Fatal("failed to set up tracing", zap.Error(err))
	}

	formatter, err := money.NewFormatter(cfg.Locale, cfg.Currency)
	if err != nil {
		zl.Fatal("invalid currency settings", zap.Error(err))
	}
	if len(cfg.CashierTokens) == 0 && cfg.JWTSecret == "" {
		zl.Warn("no CASHIER_TOKENS or JWT_SECRET configured, every API request will be rejected")
	}

	// Catalogue (sqlite)
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		zl.Fatal("failed to open catalogue database", zap.Error(err))
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		zl.Fatal("failed to run catalogue migrations", zap.Error(err))
	}

	// Local inventory reservations, loaded from the stock ledger below
	stock := inventory.NewMemoryStore(cfg.ReservationTTL)
	defer stock.Close()
	catalogService := catalog.NewService(catalogRepo, stock)

	// Terminal sessions (MongoDB + Redis)
	mongoDB, err := session.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		zl.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())
	sessionRepo := session.NewMongoRepository(mongoDB)
	if err := sessionRepo.CreateIndexes(ctx); err != nil {
		zl.Fatal("failed to create session indexes", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Fatal("redis connection failed", zap.Error(err))
	}

	sessions := session.NewStore(sessionRepo, session.NewRedisCache(redisClient), zl)
	terminals := checkout.NewRegistry(sessions, zl)
	go terminals.Run(ctx, cfg.TerminalIdleTimeout)

	// Sales ledger (postgres) behind a circuit breaker
	creds := &sales.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.SalesMigrationsPath,
	}
	salesRepo, err := sales.NewRepository(creds)
	if err != nil {
		zl.Fatal("failed to connect to sales database", zap.Error(err))
	}
	defer salesRepo.Close()
	if err := salesRepo.RunMigrations(creds); err != nil {
		zl.Fatal("failed to run sales migrations", zap.Error(err))
	}
	zl.Info("database migrations completed")

	salesService := sales.NewService(salesRepo, stock, catalogService, catalogRepo, zl)
	submitter := sales.NewBreakerSubmitter(salesService, circuitbreaker.DefaultSettings("sales"), zl)

	// products new to the ledger start from the catalogue stock; the rest keep the ledger level
	seeded, err := catalogService.SeedInventory(ctx, salesService)
	if err != nil {
		zl.Fatal("failed to seed stock", zap.Error(err))
	}
	zl.Info("stock loaded from ledger", zap.Int("products", seeded))

	// Events
	poller := publisher.NewOutboxPoller(salesRepo, publisher.NewKafkaWriter(cfg.SalesTopic, cfg.KafkaBrokers...), zl)
	defer poller.Close()
	go poller.Run(ctx)

	saleConsumer := consumer.NewSaleConsumer(
		consumer.NewKafkaReader(cfg.SalesTopic, cfg.ConsumerGroup, cfg.KafkaBrokers...), terminals, salesService, zl)
	defer saleConsumer.Close()
	go saleConsumer.Run(ctx)

	router := h.NewRouter(h.RouterConfig{
		Catalog:        catalogService,
		Terminals:      terminals,
		Submitter:      submitter,
		Sales:          salesService,
		Money:          formatter,
		Log:            zl,
		CashierTokens:  cfg.CashierTokens,
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		MaxBodySize:    cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "pos-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("POS API starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Warn("failed to flush traces", zap.Error(err))
	}

	zl.Info("server exited")
}
