package infra

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Redis configuration (task queue)
	Redis RedisConfig

	// Docker engine configuration
	Docker DockerConfig

	// Logging configuration
	LogLevel string

	// Worker configuration
	WorkerConcurrency int
}

type ServerConfig struct {
	Addr string
	Port string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DockerConfig struct {
	URL        string // Empty connects to the local default endpoint
	Username   string
	Password   string
	Email      string
	APIVersion string
	Dockerfile string
}

// LoadConfig loads configuration using viper with support for:
// - Environment variables
// - .env files
// - Default values
// Fails fast on invalid combinations
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Try to read config file (optional - env vars take precedence)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Addr: viper.GetString("server.addr"),
			Port: viper.GetString("server.port"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Docker: DockerConfig{
			URL:        viper.GetString("docker.url"),
			Username:   viper.GetString("docker.username"),
			Password:   viper.GetString("docker.password"),
			Email:      viper.GetString("docker.email"),
			APIVersion: viper.GetString("docker.api_version"),
			Dockerfile: viper.GetString("docker.dockerfile"),
		},
		LogLevel:          viper.GetString("log.level"),
		WorkerConcurrency: viper.GetInt("worker.concurrency"),
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.addr", "0.0.0.0")
	viper.SetDefault("server.port", "8080")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Docker defaults; an empty URL selects the local engine
	viper.SetDefault("docker.url", "")
	viper.SetDefault("docker.username", "")
	viper.SetDefault("docker.password", "")
	viper.SetDefault("docker.email", "")
	viper.SetDefault("docker.api_version", "")
	viper.SetDefault("docker.dockerfile", "Dockerfile")

	// Logging defaults
	viper.SetDefault("log.level", "info")

	// Worker defaults
	viper.SetDefault("worker.concurrency", 4)
}

func validateConfig(config *Config) error {
	var missing []string

	// A registry user without a password cannot authenticate
	if config.Docker.Username != "" && config.Docker.Password == "" {
		missing = append(missing, "DOCKER_PASSWORD")
	}

	if config.Redis.Addr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if config.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", config.WorkerConcurrency)
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", config.LogLevel)
	}

	return nil
}

