// cmd/historian/main.go is an asynchronous historian service that pops committed match actions
// from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jason-s-yu/certarena/internal/cache"
	"github.com/jason-s-yu/certarena/internal/config"
	"github.com/jason-s-yu/certarena/internal/database"
	"github.com/jason-s-yu/certarena/internal/historian"
	"github.com/jason-s-yu/certarena/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.Store.DatabaseURL == "" {
		logger.Fatal("historian needs DATABASE_URL or PG_* settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()
	if err := database.Migrate(pool, logger); err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	queue := cache.NewActionQueue(rdb, getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName))
	sink := func(ctx context.Context, batch []models.ActionRecord) error {
		return database.InsertActions(ctx, pool, batch)
	}
	svc := historian.New(queue, sink, historian.Options{
		BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		PopTimeout: 3 * time.Second,
	}, clockwork.NewRealClock(), logger)

	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Fatal("historian failed")
	}
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
