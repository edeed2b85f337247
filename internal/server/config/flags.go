package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/signalrelay/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-m string   storage backend: postgres or memory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-l string   base URL for links in emails
//	-w int      dispatch timeout, seconds
//	-b string   S3 bucket for audit export
//	-v          dev mode
//
// Only these flags are parsed, so -c/-config handled by parseJson does not
// collide with them.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-t", "-r", "-l", "-w", "-b", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.BaseURL, "l", config.BaseURL, "base URL for verification and reset links")
	dispatchTimeout := fs.Int("w", int(config.DispatchTimeout.Seconds()), "dispatch_timeout (in seconds)")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for audit export")
	fs.BoolVar(&config.DevMode, "v", config.DevMode, "dev mode")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.DispatchTimeout = time.Duration(*dispatchTimeout) * time.Second
}
