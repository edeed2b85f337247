package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFile is read when present; a missing file is not an error.
var dotenvFile = ".env"

// parseEnv overlays Config with environment variables. Values from
// dotenvFile never override variables that are already set.
func parseEnv(c *Config) error {
	if _, err := os.Stat(dotenvFile); err == nil {
		if err := godotenv.Load(dotenvFile); err != nil {
			return fmt.Errorf("load %s: %w", dotenvFile, err)
		}
	}

	envString("HTTP_ADDR", &c.HTTPAddr)
	envString("STORAGE", &c.Storage)
	envString("DATABASE_URL", &c.DatabaseDSN)
	envString("JWT_SECRET", &c.SecretKey)
	envString("BASE_URL", &c.BaseURL)
	envString("ADMIN_USERNAME", &c.AdminUsername)
	envString("ADMIN_EMAIL", &c.AdminEmail)
	envString("ADMIN_PASSWORD", &c.AdminPassword)
	envString("SMTP_HOST", &c.SMTPHost)
	envString("SMTP_USER", &c.SMTPUser)
	envString("SMTP_PASSWORD", &c.SMTPPassword)
	envString("FROM_EMAIL", &c.SMTPFrom)
	envString("REDIS_ADDR", &c.RedisAddr)
	envString("REDIS_PASSWORD", &c.RedisPassword)
	envString("S3_ROOT_USER", &c.S3RootUser)
	envString("S3_ROOT_PASSWORD", &c.S3RootPassword)
	envString("S3_BUCKET", &c.S3Bucket)
	envString("S3_REGION", &c.S3Region)
	envString("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)
	envString("LOG_FORMAT", &c.LogFormat)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FILE", &c.LogFile)

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}

	if err := envBool("DEV_MODE", &c.DevMode); err != nil {
		return err
	}
	if err := envInt("SMTP_PORT", &c.SMTPPort); err != nil {
		return err
	}
	if err := envInt("RATE_LIMIT_MAX", &c.RateLimitMax); err != nil {
		return err
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_VALIDITY":  &c.AccessTokenValidityDuration,
		"REFRESH_TOKEN_VALIDITY": &c.RefreshTokenValidityDuration,
		"RESET_TOKEN_VALIDITY":   &c.ResetTokenValidityDuration,
		"RATE_LIMIT_WINDOW":      &c.RateLimitWindow,
		"DISPATCH_TIMEOUT":       &c.DispatchTimeout,
		"PROBE_TIMEOUT":          &c.ProbeTimeout,
	}
	for key, dst := range durations {
		if err := envDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
