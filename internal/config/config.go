// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/certarena/internal/match"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values come from an optional YAML file and are then
// overridden by environment variables.
type Config struct {
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	Store struct {
		Driver      string `yaml:"driver"` // memory | postgres
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"store"`

	Guard struct {
		Driver string        `yaml:"driver"` // memory | redis
		TTL    time.Duration `yaml:"lock_ttl"`
		Wait   time.Duration `yaml:"lock_wait"`
	} `yaml:"guard"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	NatsURL string `yaml:"nats_url"`

	Questions struct {
		ServiceURL string        `yaml:"service_url"`
		BankPath   string        `yaml:"bank_path"`
		Retries    int           `yaml:"retries"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"questions"`

	Rules struct {
		HoldWindow        time.Duration `yaml:"hold_window"`
		EscalatedWindow   time.Duration `yaml:"escalated_window"`
		QuestionCount     int           `yaml:"question_count"`
		BuzzCorrectPoints int           `yaml:"buzz_correct_points"`
		BuzzWrongPoints   int           `yaml:"buzz_wrong_points"`
	} `yaml:"rules"`

	Rooms struct {
		AbandonGrace  time.Duration `yaml:"abandon_grace"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"rooms"`

	Auth struct {
		PrivateKeyPath string `yaml:"private_key_path"`
		PublicKeyPath  string `yaml:"public_key_path"`
	} `yaml:"auth"`

	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		Env:      "development",
		Port:     "8080",
		LogLevel: "info",
	}
	c.Store.Driver = "memory"
	c.Guard.Driver = "memory"
	c.Guard.TTL = 5 * time.Second
	c.Guard.Wait = 3 * time.Second
	c.Redis.Addr = "localhost:6379"
	c.Questions.Retries = 3
	c.Questions.Timeout = 5 * time.Second

	r := match.DefaultRules()
	c.Rules.HoldWindow = r.HoldWindow
	c.Rules.EscalatedWindow = r.EscalatedWindow
	c.Rules.QuestionCount = 5
	c.Rules.BuzzCorrectPoints = r.BuzzCorrectPoints
	c.Rules.BuzzWrongPoints = r.BuzzWrongPoints

	c.Rooms.AbandonGrace = 30 * time.Second
	c.Rooms.SweepInterval = 10 * time.Second
	c.TokenExpiry = 24 * time.Hour
	return c
}

// Load reads path (if it exists) over the defaults, applies environment overrides and validates
// the result. An empty path falls back to CERTARENA_CONFIG, then config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("CERTARENA_CONFIG", "config.yaml")
	}
	c := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Env = getEnv("CERTARENA_ENV", c.Env)
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DatabaseURL = getEnv("DATABASE_URL", c.Store.DatabaseURL)
	if c.Store.DatabaseURL == "" && os.Getenv("PG_HOST") != "" {
		c.Store.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			os.Getenv("PG_USER"),
			os.Getenv("PG_PASS"),
			os.Getenv("PG_HOST"),
			getEnv("PG_PORT", "5432"),
			os.Getenv("PG_DB"),
			getEnv("PG_SSLMODE", "disable"),
		)
	}

	c.Guard.Driver = getEnv("GUARD_DRIVER", c.Guard.Driver)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.NatsURL = getEnv("NATS_URL", c.NatsURL)
	c.Questions.ServiceURL = getEnv("QUESTION_SERVICE_URL", c.Questions.ServiceURL)
	c.Questions.BankPath = getEnv("QUESTION_BANK_PATH", c.Questions.BankPath)

	c.Auth.PrivateKeyPath = getEnv("AUTH_PRIVATE_KEY", c.Auth.PrivateKeyPath)
	c.Auth.PublicKeyPath = getEnv("AUTH_PUBLIC_KEY", c.Auth.PublicKeyPath)

	// "never" or 0 issues tokens without an exp claim.
	if v := os.Getenv("TOKEN_EXPIRE_TIME"); v == "never" {
		c.TokenExpiry = 0
	} else if v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.TokenExpiry = time.Duration(secs) * time.Second
		} else if d, err := time.ParseDuration(v); err == nil {
			c.TokenExpiry = d
		}
	}
}

// Validate rejects settings the coordinator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Rules.HoldWindow <= 0 {
		errs = append(errs, errors.New("rules.hold_window must be positive"))
	}
	if c.Rules.EscalatedWindow <= 0 || c.Rules.EscalatedWindow >= c.Rules.HoldWindow {
		errs = append(errs, fmt.Errorf("rules.escalated_window (%s) must be positive and shorter than hold_window (%s)",
			c.Rules.EscalatedWindow, c.Rules.HoldWindow))
	}
	if c.Rules.QuestionCount < 1 {
		errs = append(errs, errors.New("rules.question_count must be at least 1"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Guard.Driver != "memory" && c.Guard.Driver != "redis" {
		errs = append(errs, fmt.Errorf("unknown guard driver %q", c.Guard.Driver))
	}
	if c.Guard.TTL <= 0 || c.Guard.Wait <= 0 {
		errs = append(errs, errors.New("guard.lock_ttl and guard.lock_wait must be positive"))
	}
	if c.Rooms.AbandonGrace <= 0 || c.Rooms.SweepInterval <= 0 {
		errs = append(errs, errors.New("rooms.abandon_grace and rooms.sweep_interval must be positive"))
	}
	if (c.Auth.PrivateKeyPath == "") != (c.Auth.PublicKeyPath == "") {
		errs = append(errs, errors.New("auth.private_key_path and auth.public_key_path must be set together"))
	}
	if c.Questions.Retries < 1 {
		errs = append(errs, errors.New("questions.retries must be at least 1"))
	}
	return errors.Join(errs...)
}

// MatchRules converts the rule settings for the engines.
func (c *Config) MatchRules() match.Rules {
	return match.Rules{
		HoldWindow:        c.Rules.HoldWindow,
		EscalatedWindow:   c.Rules.EscalatedWindow,
		BuzzCorrectPoints: c.Rules.BuzzCorrectPoints,
		BuzzWrongPoints:   c.Rules.BuzzWrongPoints,
	}
}

// Production reports whether the server runs with production defaults (JSON logs, secure cookies).
func (c *Config) Production() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
