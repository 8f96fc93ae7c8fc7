// Package config содержит логику чтения конфигурации клиента витрины.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultAPIBaseURL = "http://localhost:8000/api/v1"
)

// Config содержит параметры конфигурации клиента витрины.
type Config struct {
	RunAddress string `env:"RUN_ADDRESS"`
	APIBaseURL string `env:"API_BASE_URL"`
	// TokenFile задаёт путь долговременного хранилища токена; пустой путь отключает его.
	TokenFile string `env:"TOKEN_FILE"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RetryMax       int           `env:"API_RETRY_MAX" envDefault:"2"`
	RateLimit      float64       `env:"API_RATE_LIMIT" envDefault:"0"`
	// SessionTTL ограничивает жизнь токена без срока действия.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envAPIBaseURL := cfg.APIBaseURL
	envTokenFile := cfg.TokenFile

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.APIBaseURL, "b", defaultAPIBaseURL, "storefront API base URL")
	flag.StringVar(&cfg.TokenFile, "t", "", "file for the durable auth token")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envAPIBaseURL != "" {
		cfg.APIBaseURL = envAPIBaseURL
	}
	if envTokenFile != "" {
		cfg.TokenFile = envTokenFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}

	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("API_RETRY_MAX must not be negative, got %d", cfg.RetryMax)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("API_RATE_LIMIT must not be negative, got %v", cfg.RateLimit)
	}

	return cfg, nil
}
