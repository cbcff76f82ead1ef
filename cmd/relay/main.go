package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/driver-status-relay/internal/config"
	"github.com/CyberwizD/driver-status-relay/internal/repository"
	"github.com/CyberwizD/driver-status-relay/internal/routes"
	"github.com/CyberwizD/driver-status-relay/internal/services"
	"github.com/CyberwizD/driver-status-relay/pkg/logger"
	"github.com/CyberwizD/driver-status-relay/pkg/metrics"
	"github.com/CyberwizD/driver-status-relay/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting relay",
		slog.String("app", cfg.AppName),
		slog.String("directory", cfg.DirectoryBackend),
		slog.String("provider", cfg.PushProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retryCfg := retry.Config{
		MaxAttempts:    cfg.ConnectMaxAttempts,
		InitialBackoff: cfg.ConnectInitialBackoff,
		MaxBackoff:     cfg.ConnectMaxBackoff,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logr.Warn("backend not reachable, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
		},
	}

	directory, deliveries, closer, err := openStores(ctx, cfg, retryCfg)
	if err != nil {
		logr.Error("failed to open token directory", slog.Any("error", err))
		os.Exit(1)
	}
	defer closer.Close()

	router, err := newRouter(cfg)
	if err != nil {
		logr.Error("invalid routing configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var provider services.PushProvider
	switch cfg.PushProvider {
	case config.ProviderFCM:
		provider = services.NewFCMProvider(cfg.FCMServerKey, cfg.FCMEndpoint, cfg.ProviderTimeout, logr)
	default:
		provider = services.NewLogProvider(logr)
	}

	metricsCollector := metrics.New()
	var saver services.DeliverySaver
	if deliveries != nil {
		saver = deliveries
	}
	recorder := services.NewDeliveryRecorder(saver, logr)

	relay := services.NewRelay(
		router,
		directory,
		provider,
		recorder,
		metricsCollector,
		logr,
		services.RelayConfig{
			AdminTopic:  cfg.AdminTopic,
			SendTimeout: cfg.ProviderTimeout,
		},
	)

	httpSrv := startHTTPServer(cfg.HTTPPort, routes.Options{
		Relay:        relay,
		Metrics:      metricsCollector,
		Logger:       logr,
		Started:      time.Now(),
		WellKnownDir: cfg.WellKnownDir,
	}, logr)

	<-ctx.Done()
	shutdownHTTP(httpSrv, logr)
	logr.Info("relay stopped")
}

func newRouter(cfg *config.Config) (*services.Router, error) {
	policy, err := services.ParsePolicy(cfg.RoutingPolicy)
	if err != nil {
		return nil, err
	}
	addressing, err := services.ParseAddressingMode(cfg.AddressingMode)
	if err != nil {
		return nil, err
	}
	mode, err := services.ParsePayloadMode(cfg.DeliveryMode)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return services.NewRouter(services.RouterConfig{
		Policy:      policy,
		Addressing:  addressing,
		PayloadMode: mode,
		Location:    loc,
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStores builds the configured directory. The delivery log is only
// available with the postgres backend and is nil otherwise.
func openStores(ctx context.Context, cfg *config.Config, retryCfg retry.Config) (repository.Directory, *repository.DeliveryStore, io.Closer, error) {
	switch cfg.DirectoryBackend {
	case repository.BackendPostgres:
		var db *gorm.DB
		err := retry.Do(ctx, retryCfg, func() error {
			conn, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
			if err != nil {
				return err
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return retry.Permanent(err)
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				_ = sqlDB.Close()
				return err
			}
			db = conn
			return nil
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, _ := db.DB()
		directory, err := repository.NewPostgresDirectory(db, cfg.TokenTable)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, nil, fmt.Errorf("migrate token table: %w", err)
		}
		deliveries, err := repository.NewDeliveryStore(db, cfg.DeliveryTable)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, nil, fmt.Errorf("migrate delivery table: %w", err)
		}
		return directory, deliveries, sqlDB, nil

	case repository.BackendRedis:
		opts, err := redisOptions(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb := redis.NewClient(opts)
		err = retry.Do(ctx, retryCfg, func() error {
			return rdb.Ping(ctx).Err()
		})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		directory := repository.NewRedisDirectory(rdb)
		return directory, nil, directory, nil

	default:
		return repository.NewMemoryDirectory(), nil, closerFunc(func() error { return nil }), nil
	}
}

// redisOptions accepts either a redis:// URL or a bare host:port address.
func redisOptions(cfg *config.Config) (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	return opts, nil
}

func startHTTPServer(port string, opts routes.Options, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
