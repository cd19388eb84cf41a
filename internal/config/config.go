package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379" validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"surplusbid_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"surplusbid_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"surplusbid_db"`

	// Minimum amount a new bid must add on top of the current bid.
	BidMinIncrementRaw string          `env:"BID_MIN_INCREMENT" envDefault:"1"`
	BidMinIncrement    decimal.Decimal `env:"-"`

	// How many times a contended bid write is retried before giving up.
	BidRetryBudget int `env:"BID_RETRY_BUDGET" envDefault:"3" validate:"min=1,max=10"`

	// How often view-counter deltas are flushed from Redis to Postgres.
	ViewFlushInterval time.Duration `env:"VIEW_FLUSH_INTERVAL" envDefault:"10s"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}

	cfg.BidMinIncrement, err = decimal.NewFromString(cfg.BidMinIncrementRaw)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	if !cfg.BidMinIncrement.IsPositive() {
		err = fmt.Errorf("BID_MIN_INCREMENT must be positive, got %s", cfg.BidMinIncrementRaw)
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
