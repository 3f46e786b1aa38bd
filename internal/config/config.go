package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL   string
	LogLevel string

	SessionDBPath string
	ImageDir      string

	RequestTimeout     time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	ContractValidation bool

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	NATSURL     string
	NATSSubject string

	MetricsAddr string
}

// fileConfig is the YAML layer. Unset keys leave the defaults alone.
type fileConfig struct {
	APIURL   string `yaml:"api_url"`
	LogLevel string `yaml:"log_level"`

	SessionDBPath string `yaml:"session_db"`
	ImageDir      string `yaml:"image_dir"`

	RequestTimeout     string   `yaml:"request_timeout"`
	RateLimitRPS       *float64 `yaml:"rate_limit_rps"`
	RateLimitBurst     *int     `yaml:"rate_limit_burst"`
	ContractValidation *bool    `yaml:"contract_validation"`

	Retry struct {
		MaxAttempts    *int   `yaml:"max_attempts"`
		InitialBackoff string `yaml:"initial_backoff"`
		MaxBackoff     string `yaml:"max_backoff"`
	} `yaml:"retry"`
	Breaker struct {
		Enabled      *bool    `yaml:"enabled"`
		MinRequests  *int     `yaml:"min_requests"`
		FailureRatio *float64 `yaml:"failure_ratio"`
		OpenTimeout  string   `yaml:"open_timeout"`
	} `yaml:"breaker"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	MetricsAddr string `yaml:"metrics_addr"`
}

func Defaults() Config {
	return Config{
		APIURL:   "http://127.0.0.1:8000",
		LogLevel: "warn",

		SessionDBPath: defaultDataPath("session.db"),
		ImageDir:      defaultDataPath("images"),

		RequestTimeout:     60 * time.Second,
		RateLimitRPS:       10,
		RateLimitBurst:     5,
		ContractValidation: false,

		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		BreakerEnabled:      true,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenTimeout:  15 * time.Second,

		NATSURL:     "",
		NATSSubject: "notepeel.notes",

		MetricsAddr: "127.0.0.1:9464",
	}
}

// Load reads the optional YAML file named by NOTEPEEL_CONFIG and then
// applies NOTEPEEL_* environment overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv("NOTEPEEL_CONFIG"))
}

func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if cfg, err = fc.apply(cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return applyEnv(cfg), nil
}

func (fc fileConfig) apply(cfg Config) (Config, error) {
	setString(&cfg.APIURL, fc.APIURL)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.SessionDBPath, expandHome(fc.SessionDBPath))
	setString(&cfg.ImageDir, expandHome(fc.ImageDir))
	setString(&cfg.NATSURL, fc.NATS.URL)
	setString(&cfg.NATSSubject, fc.NATS.Subject)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)

	if fc.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.RateLimitRPS
	}
	if fc.RateLimitBurst != nil {
		cfg.RateLimitBurst = *fc.RateLimitBurst
	}
	if fc.ContractValidation != nil {
		cfg.ContractValidation = *fc.ContractValidation
	}
	if fc.Retry.MaxAttempts != nil {
		cfg.RetryMaxAttempts = *fc.Retry.MaxAttempts
	}
	if fc.Breaker.Enabled != nil {
		cfg.BreakerEnabled = *fc.Breaker.Enabled
	}
	if fc.Breaker.MinRequests != nil {
		cfg.BreakerMinRequests = *fc.Breaker.MinRequests
	}
	if fc.Breaker.FailureRatio != nil {
		cfg.BreakerFailureRatio = *fc.Breaker.FailureRatio
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"retry.initial_backoff", fc.Retry.InitialBackoff, &cfg.RetryInitialBackoff},
		{"retry.max_backoff", fc.Retry.MaxBackoff, &cfg.RetryMaxBackoff},
		{"breaker.open_timeout", fc.Breaker.OpenTimeout, &cfg.BreakerOpenTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	return Config{
		APIURL:   mustEnv("NOTEPEEL_API_URL", cfg.APIURL),
		LogLevel: mustEnv("NOTEPEEL_LOG_LEVEL", cfg.LogLevel),

		SessionDBPath: expandHome(mustEnv("NOTEPEEL_SESSION_DB", cfg.SessionDBPath)),
		ImageDir:      expandHome(mustEnv("NOTEPEEL_IMAGE_DIR", cfg.ImageDir)),

		RequestTimeout:     mustEnvDuration("NOTEPEEL_REQUEST_TIMEOUT", cfg.RequestTimeout),
		RateLimitRPS:       mustEnvFloat("NOTEPEEL_RATE_LIMIT_RPS", cfg.RateLimitRPS),
		RateLimitBurst:     mustEnvInt("NOTEPEEL_RATE_LIMIT_BURST", cfg.RateLimitBurst),
		ContractValidation: mustEnvBool("NOTEPEEL_CONTRACT_VALIDATION", cfg.ContractValidation),

		RetryMaxAttempts:    mustEnvInt("NOTEPEEL_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts),
		RetryInitialBackoff: mustEnvDuration("NOTEPEEL_RETRY_INITIAL_BACKOFF", cfg.RetryInitialBackoff),
		RetryMaxBackoff:     mustEnvDuration("NOTEPEEL_RETRY_MAX_BACKOFF", cfg.RetryMaxBackoff),
		BreakerEnabled:      mustEnvBool("NOTEPEEL_BREAKER_ENABLED", cfg.BreakerEnabled),
		BreakerMinRequests:  mustEnvInt("NOTEPEEL_BREAKER_MIN_REQUESTS", cfg.BreakerMinRequests),
		BreakerFailureRatio: mustEnvFloat("NOTEPEEL_BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio),
		BreakerOpenTimeout:  mustEnvDuration("NOTEPEEL_BREAKER_OPEN_TIMEOUT", cfg.BreakerOpenTimeout),

		NATSURL:     mustEnv("NOTEPEEL_NATS_URL", cfg.NATSURL),
		NATSSubject: mustEnv("NOTEPEEL_NATS_SUBJECT", cfg.NATSSubject),

		MetricsAddr: mustEnv("NOTEPEEL_METRICS_ADDR", cfg.MetricsAddr),
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".notepeel", name)
	}
	return filepath.Join(home, ".notepeel", name)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
