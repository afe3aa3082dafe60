package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/breaker"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open cart storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeBackend()

	source, closeCatalog, err := openCatalog(cfg, log)
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer closeCatalog()

	sessions := session.NewManager(backend, log, cfg.NotificationTTL)
	defer sessions.Close()
	go sessions.RunEviction(ctx, cfg.SessionSweepInterval, cfg.SessionIdleTTL)

	orders := checkout.NewHTTPOrderClient(cfg.OrderAPIURL, cfg.RequestTimeout, breaker.DefaultConfig(), log)
	checkoutService := checkout.NewService(orders, log)

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(sessions, log, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
		log.Info("order event poller started",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(source, cfg.RequestTimeout, log),
		Cart:     h.NewCartHandler(sessions, source, cfg.RequestTimeout, log),
		Checkout: h.NewCheckoutHandler(sessions, checkoutService, cfg.RequestTimeout, log),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (persistence.Backend, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewRedisBackend(client), func() { client.Close() }, nil

	case config.StorageMongo, config.StorageLayered:
		db, err := persistence.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		closeMongo := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				log.Error("failed to disconnect from MongoDB", zap.Error(err))
			}
		}
		mongoBackend := persistence.NewMongoBackend(db)
		if err := mongoBackend.CreateIndexes(ctx); err != nil {
			closeMongo()
			return nil, nil, err
		}
		log.Info("connected to MongoDB", zap.String("uri", cfg.MongoURI))

		if cfg.StorageDriver == config.StorageMongo {
			return mongoBackend, closeMongo, nil
		}

		client, err := connectRedis(ctx, cfg)
		if err != nil {
			closeMongo()
			return nil, nil, err
		}
		cached := persistence.NewCachedBackend(mongoBackend, persistence.NewRedisBackend(client), log)
		return cached, func() {
			client.Close()
			closeMongo()
		}, nil

	default:
		log.Warn("carts are kept in memory and lost on restart")
		return persistence.NewMemoryBackend(), func() {}, nil
	}
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func openCatalog(cfg *config.Config, log *zap.Logger) (catalog.Source, func(), error) {
	if cfg.CatalogURL != "" {
		source := catalog.NewHTTPSource(cfg.CatalogURL, cfg.RequestTimeout, log)
		log.Info("using upstream catalog", zap.String("url", cfg.CatalogURL))
		return catalog.NewCachedSource(source, cfg.CatalogTTL), func() {}, nil
	}

	repo, err := catalog.NewRepository(cfg.DBPath, log)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		repo.Close()
		return nil, nil, err
	}
	log.Info("using local catalog", zap.String("db_path", cfg.DBPath))
	return catalog.NewCachedSource(repo, cfg.CatalogTTL), func() { repo.Close() }, nil
}
