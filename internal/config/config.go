// Package config provides functionality for managing configuration options
// for the client and the development backend using command-line flags,
// an optional JSON config file and environment variables.
//
// Precedence, lowest first: flag defaults and values, the JSON file, then
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientOptions holds the configuration values for the focal client.
type ClientOptions struct {
	// BaseURL is the backend API root.
	BaseURL string `json:"base_url" env:"RESQWAVE_API_URL"`

	// StatePath is where the credential file is kept.
	StatePath string `json:"state_path" env:"RESQWAVE_STATE"`

	// Passphrase seals the credential file when non-empty.
	Passphrase string `json:"-" env:"RESQWAVE_PASSPHRASE"`

	// CAFile is an extra CA bundle to trust, e.g. the dev CA from tools/certgen.
	CAFile string `json:"ca_file" env:"RESQWAVE_CA_FILE"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `json:"-" env:"RESQWAVE_TIMEOUT"`

	// ResendCooldown is the resend countdown length in seconds.
	ResendCooldown int `json:"resend_cooldown" env:"RESQWAVE_RESEND_COOLDOWN"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Ephemeral keeps credentials in memory only.
	Ephemeral bool `json:"ephemeral" env:"RESQWAVE_EPHEMERAL"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// ServerOptions holds the configuration values for the development backend.
type ServerOptions struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// JWTSecret signs session tokens.
	JWTSecret string `json:"-" env:"JWT_SECRET"`

	// SessionTTL is the lifetime of a session token.
	SessionTTL time.Duration `json:"-" env:"SESSION_TTL"`

	// OTPTTL is the lifetime of a pending login.
	OTPTTL time.Duration `json:"-" env:"OTP_TTL"`

	// ResendInterval is the minimum time between two codes for one pending login.
	ResendInterval time.Duration `json:"-" env:"RESEND_INTERVAL"`

	// MaxFailedAttempts locks an account after that many bad passwords.
	MaxFailedAttempts int `json:"max_failed_attempts" env:"MAX_FAILED_ATTEMPTS"`

	// MaxCodeAttempts discards a pending login after that many wrong codes.
	MaxCodeAttempts int `json:"max_code_attempts" env:"MAX_CODE_ATTEMPTS"`

	// LockDuration is how long a locked account stays locked.
	LockDuration time.Duration `json:"-" env:"LOCK_DURATION"`

	// CleanInterval is the period of the expired-state cleaner.
	CleanInterval time.Duration `json:"-" env:"CLEAN_INTERVAL"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`

	// SeedPassword, when set, seeds the demo accounts with this password.
	SeedPassword string `json:"-" env:"SEED_PASSWORD"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// ParseClient parses client flags from args, then applies the config file and
// the environment.
func ParseClient(args []string) (*ClientOptions, error) {
	o := &ClientOptions{}
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&o.BaseURL, "url", "http://localhost:5000", "backend base URL")
	fs.StringVar(&o.StatePath, "state", "credentials.json", "path to the credential file")
	fs.StringVar(&o.Passphrase, "passphrase", "", "seal the credential file with this passphrase")
	fs.StringVar(&o.CAFile, "ca", "", "path to an extra CA cert")
	fs.DurationVar(&o.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	fs.IntVar(&o.ResendCooldown, "cooldown", 30, "resend countdown in seconds")
	fs.StringVar(&o.LogLevel, "log", "warn", "log level")
	fs.BoolVar(&o.Ephemeral, "ephemeral", false, "keep credentials in memory only")
	fs.StringVar(&o.Config, "config", "", "path to config file")
	fs.StringVar(&o.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := load(o, &o.Config); err != nil {
		return nil, err
	}
	if o.ResendCooldown < 0 {
		return nil, fmt.Errorf("cooldown must not be negative: %d", o.ResendCooldown)
	}
	return o, nil
}

// ParseServer parses devserver flags from args, then applies the config file
// and the environment.
func ParseServer(args []string) (*ServerOptions, error) {
	o := &ServerOptions{}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&o.Port, "a", "localhost:5000", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.JWTSecret, "jwt-secret", "devsecret", "session token signing secret")
	fs.DurationVar(&o.SessionTTL, "session-ttl", 24*time.Hour, "session token lifetime")
	fs.DurationVar(&o.OTPTTL, "otp-ttl", 5*time.Minute, "pending login lifetime")
	fs.DurationVar(&o.ResendInterval, "resend-interval", 30*time.Second, "minimum time between codes")
	fs.IntVar(&o.MaxFailedAttempts, "max-failed", 5, "failed logins before lockout")
	fs.IntVar(&o.MaxCodeAttempts, "max-code-attempts", 5, "wrong codes before a pending login is discarded")
	fs.DurationVar(&o.LockDuration, "lock", 15*time.Minute, "lockout duration")
	fs.DurationVar(&o.CleanInterval, "clean-interval", time.Minute, "expired state cleanup period")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "server TLS certificate")
	fs.StringVar(&o.TLSKey, "tls-key", "", "server TLS key")
	fs.StringVar(&o.SeedPassword, "seed-password", "", "seed demo accounts with this password")
	fs.StringVar(&o.LogLevel, "log", "info", "log level")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := load(o, &o.Config); err != nil {
		return nil, err
	}
	if o.JWTSecret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return o, nil
}

// load applies the JSON config file and the environment on top of the parsed flags.
func load(o any, configPath *string) error {
	// Override flags with environment variables if set
	if p := os.Getenv("CONFIG"); p != "" {
		*configPath = p
	}

	if *configPath != "" {
		if _, err := os.Stat(*configPath); err == nil {
			data, err := os.ReadFile(*configPath)
			if err != nil {
				return fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(o); err != nil {
		return fmt.Errorf("failed to parse env: %w", err)
	}
	return nil
}
