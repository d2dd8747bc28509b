package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      Server      `mapstructure:"server"`
	Database    Database    `mapstructure:"database"`
	Redis       Redis       `mapstructure:"redis"`
	Auth        Auth        `mapstructure:"auth"`
	Mailer      Mailer      `mapstructure:"mailer"`
	Share       Share       `mapstructure:"share"`
	Logger      Logger      `mapstructure:"logger"`
	Maintenance Maintenance `mapstructure:"maintenance"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Redis holds the configuration for the pub/sub broker.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Auth holds session and one-time-token settings.
type Auth struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	ActionTokenTTL time.Duration `mapstructure:"action_token_ttl"`
}

// Mailer holds the configuration for the outbound mail API.
type Mailer struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	From           string  `mapstructure:"from"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Share holds settings for public share links.
type Share struct {
	BaseURL string `mapstructure:"base_url"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Maintenance holds schedules for background cleanup jobs.
type Maintenance struct {
	PurgeSpec string `mapstructure:"purge_spec"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.env", "dev")
	viper.SetDefault("database.dsn", "flippl.db")
	viper.SetDefault("auth.access_ttl", 15*time.Minute)
	viper.SetDefault("auth.refresh_ttl", 30*24*time.Hour)
	viper.SetDefault("auth.action_token_ttl", time.Hour)
	viper.SetDefault("mailer.rate_limit", 10) // requests per second
	viper.SetDefault("mailer.rate_limit_burst", 5)
	viper.SetDefault("maintenance.purge_spec", "0 0 * * * *") // every hour, with seconds field
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
