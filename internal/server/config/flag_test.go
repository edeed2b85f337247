package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", "postgres", "-d", "db", "-s", "secret",
			"-t", "1", "-r", "3", "-l", "https://relay.example", "-w", "60", "-b", "audit", "-v",
		}, expected: &Config{
			HTTPAddr:                     "127.0.0.1:9090",
			Storage:                      "postgres",
			DatabaseDSN:                  "db",
			SecretKey:                    "secret",
			AccessTokenValidityDuration:  1 * time.Minute,
			RefreshTokenValidityDuration: 3 * time.Minute,
			BaseURL:                      "https://relay.example",
			DispatchTimeout:              60 * time.Second,
			S3Bucket:                     "audit",
			DevMode:                      true,
		}},
		{name: "unrelated flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "1"},
			expected: &Config{}},
		{name: "bad integer panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
