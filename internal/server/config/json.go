package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/flagx"
	"github.com/dmitrijs2005/signalrelay/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Intervals use
// timex.Duration, so both "2m" and integer nanoseconds are accepted.
// Omitted keys leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	Storage                      string         `json:"storage"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ResetTokenValidityDuration   timex.Duration `json:"reset_token_validity_duration"`
	BaseURL                      string         `json:"base_url"`
	CORSOrigins                  []string       `json:"cors_origins"`
	DevMode                      *bool          `json:"dev_mode"`
	AdminUsername                string         `json:"admin_username"`
	AdminEmail                   string         `json:"admin_email"`
	AdminPassword                string         `json:"admin_password"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	SMTPUser                     string         `json:"smtp_user"`
	SMTPPassword                 string         `json:"smtp_password"`
	SMTPFrom                     string         `json:"smtp_from"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RateLimitMax                 int            `json:"rate_limit_max"`
	RateLimitWindow              timex.Duration `json:"rate_limit_window"`
	DispatchTimeout              timex.Duration `json:"dispatch_timeout"`
	ProbeTimeout                 timex.Duration `json:"probe_timeout"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
	LogFile                      string         `json:"log_file"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// It panics when the file cannot be read or is not valid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setString(&config.BaseURL, c.BaseURL)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.DevMode != nil {
		config.DevMode = *c.DevMode
	}
	setString(&config.AdminUsername, c.AdminUsername)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RateLimitMax != 0 {
		config.RateLimitMax = c.RateLimitMax
	}
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setDuration(&config.DispatchTimeout, c.DispatchTimeout)
	setDuration(&config.ProbeTimeout, c.ProbeTimeout)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
