package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all pipeline configuration.
type Config struct {
	Env      string `validate:"required,oneof=development test production"`
	Database DatabaseConfig
	Matcher  MatcherConfig
	Comps    CompsConfig
	Geocode  GeocodeConfig
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	Name     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	PoolMin  int    `validate:"gte=0,ltefield=PoolMax"`
	PoolMax  int    `validate:"gte=1"`
}

// MatcherConfig tunes the transaction matcher.
type MatcherConfig struct {
	// WriteBatchSize is how many resolved sales are flushed per storage
	// write.
	WriteBatchSize int `validate:"gte=1"`
}

// CompsConfig tunes comparable selection and the adjusted-price clamp.
type CompsConfig struct {
	MaxComps         int     `validate:"gte=1,lte=20"`
	MaxAdjustedPrice float64 `validate:"gt=0"`
	// Seed drives only the tie-breaker in comp ranking; a fixed seed
	// keeps runs reproducible.
	Seed int64
}

// GeocodeConfig bounds the enrichment dispatcher against the upstream
// service's quota.
type GeocodeConfig struct {
	BatchSize     int `validate:"gte=1,lte=1000"`
	MaxPerSecond  int `validate:"gte=1"`
	MaxConcurrent int `validate:"gte=1,lte=32"`
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "propintel")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("MATCH_WRITE_BATCH_SIZE", 500)
	v.SetDefault("COMP_MAX", 5)
	v.SetDefault("COMP_MAX_ADJUSTED_PRICE", 50_000_000)
	v.SetDefault("COMP_SEED", 1)
	v.SetDefault("GEOCODE_BATCH_SIZE", 100)
	v.SetDefault("GEOCODE_MAX_RPS", 10)
	v.SetDefault("GEOCODE_MAX_CONCURRENT", 2)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Env: v.GetString("ENV"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Matcher: MatcherConfig{
			WriteBatchSize: v.GetInt("MATCH_WRITE_BATCH_SIZE"),
		},
		Comps: CompsConfig{
			MaxComps:         v.GetInt("COMP_MAX"),
			MaxAdjustedPrice: v.GetFloat64("COMP_MAX_ADJUSTED_PRICE"),
			Seed:             v.GetInt64("COMP_SEED"),
		},
		Geocode: GeocodeConfig{
			BatchSize:     v.GetInt("GEOCODE_BATCH_SIZE"),
			MaxPerSecond:  v.GetInt("GEOCODE_MAX_RPS"),
			MaxConcurrent: v.GetInt("GEOCODE_MAX_CONCURRENT"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%s failed %q validation", first.Namespace(), first.Tag())
		}
		return err
	}
	return nil
}
