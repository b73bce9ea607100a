package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"webgate/internal/gate"
	"webgate/internal/i18n"
	"webgate/internal/pageview"
	personstore "webgate/internal/person/store"
	"webgate/internal/platform/config"
	"webgate/internal/platform/httpserver"
	"webgate/internal/platform/kafka"
	"webgate/internal/platform/logger"
	"webgate/internal/platform/metrics"
	"webgate/internal/platform/postgres"
	"webgate/internal/platform/redis"
	"webgate/internal/session"
	"webgate/internal/throttle"
	"webgate/internal/web"
	"webgate/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Request handling lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	health := map[string]web.HealthCheck{}

	tr, err := i18n.New(cfg.Locale.Default, cfg.Locale.Supported)
	if err != nil {
		return fmt.Errorf("build translator: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var (
		sessionStore session.Store
		loginLimiter throttle.Limiter
	)
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("using redis session store and login throttle")
		health["redis"] = redisClient.Health
		sessionStore = session.NewRedisStore(redisClient.Client)
		loginLimiter = throttle.NewRedisLimiter(redisClient.Client, cfg.Throttle.LoginLimit, cfg.Throttle.LoginWindow)
	} else {
		log.Info("using in-memory session store and login throttle")
		sessionStore = session.NewMemoryStore()
		loginLimiter = throttle.NewMemoryLimiter(cfg.Throttle.LoginLimit, cfg.Throttle.LoginWindow)
	}

	people, closePeople, err := buildPersonStore(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closePeople()

	if cfg.SeedAdmin {
		if err := seedAdmin(ctx, people, cfg, log); err != nil {
			return err
		}
	}

	recorder, closeRecorder, err := buildRecorder(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer closeRecorder()

	sessions := session.NewManager(sessionStore, cfg.Session, log, session.WithMetrics(m))
	g := gate.New(people, sessions, tr, cfg.Gate, log,
		gate.WithMetrics(m),
		gate.WithPageViewRecorder(recorder),
	)

	trustedProxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}

	router := web.NewRouter(web.Deps{
		Gate:         g,
		Sessions:     sessions,
		People:       people,
		Translator:   tr,
		GateConfig:   cfg.Gate,
		Logger:       log,
		Metrics:      m,
		LoginLimiter: loginLimiter,
		Gatherer:     prometheus.DefaultGatherer,
		MetricsToken: cfg.MetricsToken,
		Health:       health,

		TrustedProxies: trustedProxies,
	})
	srv := httpserver.New(cfg.Addr, router)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Info("starting webgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-grpCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down webgate")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return grp.Wait()
}

type personStore interface {
	gate.PersonStore
	web.PersonStore
}

func buildPersonStore(ctx context.Context, cfg config.Server, log *slog.Logger, health map[string]web.HealthCheck) (personStore, func(), error) {
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if db == nil {
		log.Info("using in-memory person store")
		return personstore.NewInMemory(), func() {}, nil
	}
	pg := personstore.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate people: %w", err)
	}
	log.Info("using postgres person store")
	health["postgres"] = db.PingContext
	return pg, func() { _ = db.Close() }, nil
}

func buildRecorder(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (pageview.Recorder, func(), error) {
	client, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return pageview.NewLogRecorder(log, m), func() {}, nil
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.PageViewTopic); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("publishing page views to kafka", "topic", cfg.Kafka.PageViewTopic)
	return pageview.NewKafkaRecorder(client, cfg.Kafka.PageViewTopic, log, m), func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Flush(flushCtx); err != nil {
			log.Warn("failed to flush page views", "error", err)
		}
		client.Close()
	}, nil
}
