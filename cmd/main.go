package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/cache"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/client"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/config"
	cartgrpc "github.com/MarketMasterPlus/mm-shopping-cart/internal/grpc"
	h "github.com/MarketMasterPlus/mm-shopping-cart/internal/http"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/metrics"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/publisher"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/repository"
	s "github.com/MarketMasterPlus/mm-shopping-cart/internal/service"
	"github.com/MarketMasterPlus/mm-shopping-cart/pkg/circuitbreaker"
	"github.com/MarketMasterPlus/mm-shopping-cart/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	// .env is optional; real deployments pass the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	logger.New(logger.Options{
		Service: "mm-shopping-cart",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if err := run(cfg); err != nil {
		slog.Error("shopping cart service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	probes := []cartgrpc.Probe{{Name: cfg.StoreDriver, Check: repo.Ping}}

	var cartCache cache.CartCache = cache.NoopCache{}
	if cfg.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		slog.Info("redis ping succeeded", "addr", cfg.RedisAddr)
		cartCache = cache.NewRedisCache(redisClient)
		probes = append(probes, cartgrpc.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	breaker := circuitbreaker.Settings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}
	inventory := client.NewInventoryClient(client.InventoryConfig{
		Config: client.Config{
			BaseURL: cfg.Inventory.BaseURL,
			Timeout: cfg.Inventory.Timeout,
			Breaker: breaker,
		},
		PathPrefix: cfg.Inventory.PathPrefix,
	})
	customers := client.NewCustomerClient(client.Config{
		BaseURL: cfg.Customer.BaseURL,
		Timeout: cfg.Customer.Timeout,
		Breaker: breaker,
	})

	var events interface {
		s.EventPublisher
		Close() error
	} = publisher.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		slog.Info("publishing cart events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer events.Close()

	ledgers := s.NoCompensation()
	if cfg.CheckoutCompensate {
		ledgers = s.Compensating(inventory)
	}

	pricing := s.NewPricingCalculator(inventory, cfg.PricingConcurrency, m)
	carts := s.NewCartService(repo, cartCache, inventory, customers, pricing)
	checkout := s.NewCheckoutEngine(repo, cartCache, inventory,
		s.WithLedgerFactory(ledgers),
		s.WithEventPublisher(events),
		s.WithCheckoutMetrics(m),
	)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Carts:          carts,
			Checkout:       checkout,
			Metrics:        m,
			Gatherer:       reg,
			MetricsPath:    cfg.MetricsPath,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	health := cartgrpc.NewHealthServer(cfg.HealthInterval, probes...)
	health.Watch(ctx)

	errc := make(chan error, 2)
	go func() {
		slog.Info("http server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("grpc health server starting", "port", cfg.GRPCPort)
		if err := health.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errc:
		slog.Error("server failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	health.Stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		slog.Error("server forced to shutdown", "error", serr)
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (repository.CartRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		repo, err := repository.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to mongodb", "db", cfg.Mongo.DBName)
		return repo, nil

	case config.StoreDriverPostgres:
		cred := &repository.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			MigrationsDirPath: cfg.Postgres.MigrationsPath,
		}
		repo, err := repository.NewPostgresRepository(cred)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(cred); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
