package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	type want struct {
		runAddress string
		apiBaseURL string
		tokenFile  string
	}

	tests := []struct {
		name  string
		env   map[string]string
		flags []string
		want  want
	}{
		{
			name:  "defaults",
			env:   map[string]string{},
			flags: []string{},
			want: want{
				runAddress: "localhost:8080",
				apiBaseURL: "http://localhost:8000/api/v1",
			},
		},
		{
			name: "env only",
			env: map[string]string{
				"RUN_ADDRESS":  "localhost:9999",
				"API_BASE_URL": "https://shop.example.com/api/v1",
				"TOKEN_FILE":   "/tmp/token.json",
			},
			flags: []string{},
			want: want{
				runAddress: "localhost:9999",
				apiBaseURL: "https://shop.example.com/api/v1",
				tokenFile:  "/tmp/token.json",
			},
		},
		{
			name: "flags only",
			env:  map[string]string{},
			flags: []string{
				"-a", "localhost:7777",
				"-b", "http://api:8000/api/v1",
				"-t", "/var/lib/storefront/token",
			},
			want: want{
				runAddress: "localhost:7777",
				apiBaseURL: "http://api:8000/api/v1",
				tokenFile:  "/var/lib/storefront/token",
			},
		},
		{
			name: "env overrides flags",
			env: map[string]string{
				"RUN_ADDRESS":  "env:9000",
				"API_BASE_URL": "http://env-api/api/v1",
				"TOKEN_FILE":   "/env/token",
			},
			flags: []string{
				"-a", "flag:8000",
				"-b", "http://flag-api/api/v1",
				"-t", "/flag/token",
			},
			want: want{
				runAddress: "env:9000",
				apiBaseURL: "http://env-api/api/v1",
				tokenFile:  "/env/token",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := Parse()
			require.NoError(t, err)

			assert.Equal(t, tt.want.runAddress, cfg.RunAddress)
			assert.Equal(t, tt.want.apiBaseURL, cfg.APIBaseURL)
			assert.Equal(t, tt.want.tokenFile, cfg.TokenFile)
		})
	}
}

func TestParseConfig_TransportSettings(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	os.Args = []string{"test"}

	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("API_RETRY_MAX", "5")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("SESSION_TTL", "1h")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RetryMax)
	assert.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestParseConfig_RejectsNegativeRetries(t *testing.T) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	os.Args = []string{"test"}

	t.Setenv("API_RETRY_MAX", "-1")

	_, err := Parse()
	require.Error(t, err)
}
