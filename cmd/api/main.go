package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/telemetry"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("storefront stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい（環境変数だけで動く）
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Debug(".env not loaded", "error", envErr.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing("storefront", cfg.TraceStdout)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)

	metrics := telemetry.NewMetrics()

	//注文イベント（KAFKA_BROKERSが無ければ送らない）
	var orderEvents usecase.OrderEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		k := events.NewKafkaOrderEvents(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = k.Close() }()
		orderEvents = k
	}

	//カート保存先
	cartStore, closeCarts, err := newCartStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCarts()

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(orderRepo, orderItemRepo, validator.NewOrderValidator(), orderEvents, metrics, usecase.OrderOptions{
		VerifyTotal:  cfg.OrderVerifyTotal,
		StepTimeout:  cfg.OrderStepTimeout,
		EventTimeout: cfg.OrderEventTimeout,
	})
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(cartStore, productUC, orderUC, metrics)

	if cfg.SeedCatalog {
		seeded, err := productUC.SeedIfEmpty(ctx, usecase.DefaultCatalog())
		if err != nil {
			return err
		}
		if seeded {
			log.Info("catalog seeded")
		}
	}

	//JWT_SECRETがある時だけ認証する
	var auth echo.MiddlewareFunc
	if cfg.JWTSecret != "" {
		auth = middleware.AuthJWT(cfg.JWTSecret)
	}

	//Handler生成
	e := server.New(log, server.Handlers{
		Health:   handler.NewHealthHandler(metrics.Handler()),
		Products: handler.NewProductHandler(productUC),
		Orders:   handler.NewOrderHandler(orderUC, auth),
		Cart:     handler.NewCartHandler(cartUC, auth),
	})

	//Server起動
	return server.Start(ctx, e, cfg.Addr(), log)
}

func newCartStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repo.CartStore, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, carts are kept in memory")
		return cache.NewMemoryCartStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store := cache.NewRedisCartStore(client, cfg.CartTTL)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}
