package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/config"
	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
)

// Config is everything the process reads from the environment.
type Config struct {
	Service     string
	Port        string
	DatabaseURL string
	DB          db.Options
	// DevSeed loads a demo trainer into the in-memory store when no database is configured.
	DevSeed bool

	KafkaBrokers    string
	OutboxPollEvery time.Duration
	OutboxBatchSize int

	RedisURL          string
	RateLimit         int
	RateLimitWindow   time.Duration
	RateLimitFailOpen bool

	RequestTimeout time.Duration
	BodyLimit      int64
	CORS           httpx.CORSPolicy

	Location      *time.Location
	StepMinutes   int
	HorizonDays   int
	PendingBlocks bool
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Service:      config.String("SERVICE_NAME", "booking-service"),
		DatabaseURL:  config.String("DATABASE_URL", ""),
		KafkaBrokers: config.String("KAFKA_BROKERS", ""),
		RedisURL:     config.String("REDIS_URL", ""),
		CORS: httpx.CORSPolicy{
			AllowedOrigins: httpx.ParseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: httpx.ParseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: httpx.ParseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-Role,X-User-Id")),
		},
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return Config{}, err
	}
	if cfg.DevSeed, err = config.Bool("DEV_SEED", true); err != nil {
		return Config{}, err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10, 1, 200)
	if err != nil {
		return Config{}, err
	}
	cfg.DB.MaxConns = int32(maxConns)

	if cfg.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_EVERY", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50, 1, 1000); err != nil {
		return Config{}, err
	}

	if cfg.RateLimit, err = config.Int("RATE_LIMIT_REQUESTS", 120, 0, 100000); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = config.Duration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitFailOpen, err = config.Bool("RATE_LIMIT_FAIL_OPEN", true); err != nil {
		return Config{}, err
	}

	if cfg.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	bodyKB, err := config.Int("BODY_LIMIT_KB", 64, 1, 10240)
	if err != nil {
		return Config{}, err
	}
	cfg.BodyLimit = int64(bodyKB) << 10
	if cfg.CORS.AllowCredentials, err = config.Bool("CORS_ALLOW_CREDENTIALS", false); err != nil {
		return Config{}, err
	}
	if cfg.CORS.MaxAge, err = config.Duration("CORS_MAX_AGE", 10*time.Minute); err != nil {
		return Config{}, err
	}

	tz := strings.TrimSpace(config.String("SCHEDULE_TIMEZONE", "UTC"))
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	if cfg.StepMinutes, err = config.Int("SLOT_STEP_MINUTES", availability.DefaultStepMinutes, 1, 240); err != nil {
		return Config{}, err
	}
	if cfg.HorizonDays, err = config.Int("SLOT_HORIZON_DAYS", availability.DefaultHorizonDays, 1, availability.MaxHorizonDays); err != nil {
		return Config{}, err
	}
	if cfg.PendingBlocks, err = config.Bool("SLOTS_PENDING_BLOCKS", true); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) slotConfig() availability.Config {
	return availability.Config{
		StepMinutes:   c.StepMinutes,
		HorizonDays:   c.HorizonDays,
		PendingBlocks: c.PendingBlocks,
		Location:      c.Location,
	}
}
