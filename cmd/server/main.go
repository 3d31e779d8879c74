// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/certarena/internal/auth"
	"github.com/jason-s-yu/certarena/internal/cache"
	"github.com/jason-s-yu/certarena/internal/config"
	"github.com/jason-s-yu/certarena/internal/coordinator"
	"github.com/jason-s-yu/certarena/internal/database"
	"github.com/jason-s-yu/certarena/internal/fanout"
	"github.com/jason-s-yu/certarena/internal/guard"
	"github.com/jason-s-yu/certarena/internal/handlers"
	"github.com/jason-s-yu/certarena/internal/questions"
	"github.com/jason-s-yu/certarena/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.Auth.PrivateKeyPath != "" {
		if err := auth.InitFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.TokenExpiry); err != nil {
			return err
		}
	} else {
		logger.Warn("no auth keys configured, generating an ephemeral key pair")
		if err := auth.Init(cfg.TokenExpiry); err != nil {
			return err
		}
	}

	clock := clockwork.NewRealClock()
	var opts []coordinator.Option

	var pool *pgxpool.Pool
	var matches store.Store = store.NewMemoryStore()
	if cfg.Store.Driver == "postgres" {
		p, err := database.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer p.Close()
		if err := database.Migrate(p, logger); err != nil {
			return err
		}
		pool = p
		matches = store.NewPostgresStore(p)
		opts = append(opts, coordinator.WithResultRecorder(database.NewResults(p)))
	}

	var rdb *redis.Client
	if cfg.Guard.Driver == "redis" || cfg.Store.Driver == "postgres" {
		c, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		switch {
		case err == nil:
			defer c.Close()
			rdb = c
			opts = append(opts, coordinator.WithActionLog(cache.NewActionQueue(c, cache.DefaultQueueName)))
		case cfg.Guard.Driver == "redis":
			return err
		default:
			logger.WithError(err).Warn("redis unavailable, action history disabled")
		}
	}

	var lock guard.Guard = guard.NewKeyedMutex(cfg.Guard.Wait)
	if cfg.Guard.Driver == "redis" {
		lock = guard.NewRedisLease(rdb, cfg.Guard.TTL, cfg.Guard.Wait, logger)
	}

	hub := fanout.NewHub(clock, logger)
	var publisher fanout.Publisher = hub
	if cfg.NatsURL != "" {
		nc, err := fanout.ConnectNATS(cfg.NatsURL, logger)
		if err != nil {
			return err
		}
		bridge := fanout.NewBridge(nc, hub, logger)
		if err := bridge.Start(); err != nil {
			return err
		}
		defer bridge.Close()
		publisher = bridge
	}

	supplier, err := newSupplier(cfg, logger)
	if err != nil {
		return err
	}

	coord := coordinator.New(matches, lock, publisher, supplier, clock, logger, coordinator.Settings{
		Rules:         cfg.MatchRules(),
		QuestionCount: cfg.Rules.QuestionCount,
		AbandonGrace:  cfg.Rooms.AbandonGrace,
		SweepInterval: cfg.Rooms.SweepInterval,
	}, opts...)

	api := handlers.NewAPIServer(coord, hub, clock, logger).
		WithSecureCookies(cfg.Production()).
		WithOrigins(originHosts(cfg.AllowedOrigins))
	if pool != nil {
		api.WithRatings(database.NewResults(pool))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(api.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweeper := coordinator.NewSweeper(coord, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Start(gctx, cfg.Rooms.SweepInterval, clock)
	})
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":  server.Addr,
			"store": cfg.Store.Driver,
			"guard": cfg.Guard.Driver,
			"nats":  cfg.NatsURL != "",
		}).Info("certarena server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sweeper.Stop(); err != nil {
			logger.WithError(err).Warn("sweeper shutdown failed")
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSupplier prefers the question service and falls back to a local bank.
func newSupplier(cfg *config.Config, logger *logrus.Logger) (questions.Supplier, error) {
	switch {
	case cfg.Questions.ServiceURL != "":
		return questions.NewHTTPClient(cfg.Questions.ServiceURL, cfg.Questions.Timeout, cfg.Questions.Retries, logger), nil
	case cfg.Questions.BankPath != "":
		return questions.LoadBank(cfg.Questions.BankPath, time.Now().UnixNano())
	default:
		logger.Warn("no question supply configured, matches cannot start")
		return questions.NewBank(nil, 0), nil
	}
}

// originHosts strips schemes so allowed origins double as websocket origin patterns.
func originHosts(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, o)
	}
	return out
}
