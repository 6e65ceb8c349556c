package infra

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func loadFresh(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return LoadConfig()
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadFresh(t)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Docker.URL != "" {
		t.Fatalf("expected empty docker URL by default, got %q", config.Docker.URL)
	}
	if config.Docker.Dockerfile != "Dockerfile" {
		t.Fatalf("unexpected dockerfile default %q", config.Docker.Dockerfile)
	}
	if config.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected redis default %q", config.Redis.Addr)
	}
	if config.Server.Port != "8080" || config.LogLevel != "info" || config.WorkerConcurrency != 4 {
		t.Fatalf("unexpected defaults %+v", config)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DOCKER_URL", "tcp://engine:2376")
	t.Setenv("DOCKER_USERNAME", "ci")
	t.Setenv("DOCKER_PASSWORD", "secret")
	t.Setenv("DOCKER_EMAIL", "ci@example.com")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := loadFresh(t)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := DockerConfig{
		URL:        "tcp://engine:2376",
		Username:   "ci",
		Password:   "secret",
		Email:      "ci@example.com",
		Dockerfile: "Dockerfile",
	}
	if config.Docker != want {
		t.Fatalf("docker config = %+v, want %+v", config.Docker, want)
	}
	if config.Redis.Addr != "redis:6380" || config.WorkerConcurrency != 2 || config.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", config)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "user without password",
			env:     map[string]string{"DOCKER_USERNAME": "ci"},
			wantErr: "DOCKER_PASSWORD",
		},
		{
			name:    "zero concurrency",
			env:     map[string]string{"WORKER_CONCURRENCY": "0"},
			wantErr: "WORKER_CONCURRENCY",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadFresh(t)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
		"info":    zap.NewAtomicLevelAt(zap.InfoLevel),
		"unknown": zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for level, want := range tests {
		logger, err := NewLogger(level)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", level, err)
		}
		if !logger.Core().Enabled(want.Level()) {
			t.Errorf("NewLogger(%q) does not enable %s", level, want.Level())
		}
		if want.Level() > zap.DebugLevel && logger.Core().Enabled(want.Level()-1) {
			t.Errorf("NewLogger(%q) enables level below %s", level, want.Level())
		}
	}
}
