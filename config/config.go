// Package config loads runtime settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Database DatabaseConfig
	Catalog  CatalogConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	Path string `mapstructure:"LIBRARY_DB_PATH"`
}

type CatalogConfig struct {
	SeedSamples         bool `mapstructure:"LIBRARY_SEED_SAMPLES"`
	OneReviewPerUser    bool `mapstructure:"LIBRARY_REVIEWS_ONE_PER_USER"`
	TopRatedLimit       int  `mapstructure:"LIBRARY_TOP_RATED_LIMIT"`
	RecentActivityLimit int  `mapstructure:"LIBRARY_RECENT_ACTIVITY_LIMIT"`
}

// AdminConfig is the account created when the user collection is empty.
type AdminConfig struct {
	Email    string `mapstructure:"LIBRARY_ADMIN_EMAIL"`
	Password string `mapstructure:"LIBRARY_ADMIN_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LIBRARY_DB_PATH", "library.db")
	v.SetDefault("LIBRARY_SEED_SAMPLES", true)
	v.SetDefault("LIBRARY_REVIEWS_ONE_PER_USER", false)
	v.SetDefault("LIBRARY_TOP_RATED_LIMIT", 5)
	v.SetDefault("LIBRARY_RECENT_ACTIVITY_LIMIT", 8)
	v.SetDefault("LIBRARY_ADMIN_EMAIL", "admin@library.com")
	v.SetDefault("LIBRARY_ADMIN_PASSWORD", "admin123")
}

// Load reads .env (when present) and then the environment. A missing .env is
// not an error; a malformed one is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	cfg.AppEnv = v.GetString("APP_ENV")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	cfg.Database.Path = v.GetString("LIBRARY_DB_PATH")

	cfg.Catalog.SeedSamples = v.GetBool("LIBRARY_SEED_SAMPLES")
	cfg.Catalog.OneReviewPerUser = v.GetBool("LIBRARY_REVIEWS_ONE_PER_USER")
	cfg.Catalog.TopRatedLimit = v.GetInt("LIBRARY_TOP_RATED_LIMIT")
	cfg.Catalog.RecentActivityLimit = v.GetInt("LIBRARY_RECENT_ACTIVITY_LIMIT")

	cfg.Admin.Email = v.GetString("LIBRARY_ADMIN_EMAIL")
	cfg.Admin.Password = v.GetString("LIBRARY_ADMIN_PASSWORD")

	return &cfg, nil
}
