/**
 * @description
 * This package handles the configuration management for the gateway. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPollIntervalSeconds = 3
	defaultPollTimeoutSeconds  = 120
	defaultOTPResendSeconds    = 60
	defaultAPITimeoutSeconds   = 30
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all the configuration variables for the eConfirm gateway.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	APIBaseURL             string `mapstructure:"API_BASE_URL"`
	APITimeoutSeconds      int    `mapstructure:"API_TIMEOUT_SECONDS"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
	StorageDriver          string `mapstructure:"STORAGE_DRIVER"`
	SQLitePath             string `mapstructure:"SQLITE_PATH"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix         string `mapstructure:"REDIS_KEY_PREFIX"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	EventsExchange         string `mapstructure:"EVENTS_EXCHANGE"`
	PollIntervalSeconds    int    `mapstructure:"PAYMENT_POLL_INTERVAL_SECONDS"`
	PollTimeoutSeconds     int    `mapstructure:"PAYMENT_POLL_TIMEOUT_SECONDS"`
	OTPResendSeconds       int    `mapstructure:"OTP_RESEND_SECONDS"`
	CatalogRefreshSchedule string `mapstructure:"CATALOG_REFRESH_SCHEDULE"`
	AllowedOrigins         string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and the optional .env
// file found in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("API_BASE_URL", "https://econfirm.co.ke/api")
	viper.SetDefault("API_TIMEOUT_SECONDS", defaultAPITimeoutSeconds)
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("STORAGE_DRIVER", StorageSQLite)
	viper.SetDefault("SQLITE_PATH", "./data/econfirm.db")
	viper.SetDefault("REDIS_KEY_PREFIX", "econfirm:device")
	viper.SetDefault("EVENTS_EXCHANGE", "econfirm.client.events")
	viper.SetDefault("PAYMENT_POLL_INTERVAL_SECONDS", defaultPollIntervalSeconds)
	viper.SetDefault("PAYMENT_POLL_TIMEOUT_SECONDS", defaultPollTimeoutSeconds)
	viper.SetDefault("OTP_RESEND_SECONDS", defaultOTPResendSeconds)
	viper.SetDefault("CATALOG_REFRESH_SCHEDULE", "@every 30m")
	viper.SetDefault("ALLOWED_ORIGINS", "http://*,https://*")

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("API_BASE_URL", "API_BASE_URL", "ECONFIRM_API_BASE_URL")
	_ = viper.BindEnv("API_TIMEOUT_SECONDS")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("STORAGE_DRIVER")
	_ = viper.BindEnv("SQLITE_PATH")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("PAYMENT_POLL_INTERVAL_SECONDS")
	_ = viper.BindEnv("PAYMENT_POLL_TIMEOUT_SECONDS")
	_ = viper.BindEnv("OTP_RESEND_SECONDS")
	_ = viper.BindEnv("CATALOG_REFRESH_SCHEDULE")
	_ = viper.BindEnv("ALLOWED_ORIGINS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.APIBaseURL = strings.TrimRight(strings.TrimSpace(config.APIBaseURL), "/")
	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	if config.StorageDriver == "" {
		config.StorageDriver = StorageSQLite
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

	config.APITimeoutSeconds = positiveOrDefault("API_TIMEOUT_SECONDS", config.APITimeoutSeconds, defaultAPITimeoutSeconds)
	config.PollIntervalSeconds = positiveOrDefault("PAYMENT_POLL_INTERVAL_SECONDS", config.PollIntervalSeconds, defaultPollIntervalSeconds)
	config.PollTimeoutSeconds = positiveOrDefault("PAYMENT_POLL_TIMEOUT_SECONDS", config.PollTimeoutSeconds, defaultPollTimeoutSeconds)
	config.OTPResendSeconds = positiveOrDefault("OTP_RESEND_SECONDS", config.OTPResendSeconds, defaultOTPResendSeconds)

	return
}

func positiveOrDefault(key string, value, fallback int) int {
	if value > 0 {
		return value
	}
	log.Printf("level=warn component=config msg=\"non-positive value; using default\" key=%s value=%d default=%d", key, value, fallback)
	return fallback
}

// APITimeout returns the backend request timeout.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// PollInterval returns the payment status polling interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollTimeout returns the soft timeout after which polling stops.
func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// OTPResendDelay returns how long the user waits before an OTP can be resent.
func (c Config) OTPResendDelay() time.Duration {
	return time.Duration(c.OTPResendSeconds) * time.Second
}

// Origins splits ALLOWED_ORIGINS into the list the CORS middleware expects.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
