// Package config provides layered configuration loading for the Veil
// service. Defaults are merged with VEIL_-prefixed environment variables and
// the result is validated before use.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "VEIL_"

// Config holds the merged runtime configuration for the Veil service.
// Order of precedence (lowest to highest): defaults, environment.
type Config struct {
	Addr    string `koanf:"addr" validate:"ip_port"`
	BaseURL string `koanf:"base_url" validate:"required,url"`

	Store         string `koanf:"store" validate:"oneof=memory sqlite redis"`
	DataDir       string `koanf:"data_dir" validate:"safe_path"`
	RedisAddr     string `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"min=0"`

	MaxSecretBytes     int64 `koanf:"max_secret_bytes" validate:"min=1"`
	MaxSecretDays      int   `koanf:"max_secret_days" validate:"min=1"`
	MaxSecretViews     int   `koanf:"max_secret_views" validate:"min=1"`
	MaxFailedAttempts  int   `koanf:"max_failed_attempts" validate:"min=1"`
	DefaultExpiryHours int   `koanf:"default_expiry_hours" validate:"min=1"`

	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"min=1s"`
	MetricsToken    string        `koanf:"metrics_token"`
}

// DefaultAppConfig is the configuration used when no environment overrides
// are present.
var DefaultAppConfig = Config{
	Addr:               ":8080",
	BaseURL:            "http://localhost:8080",
	Store:              "sqlite",
	DataDir:            "./data",
	MaxSecretBytes:     128 << 10, // 128 KiB
	MaxSecretDays:      30,
	MaxSecretViews:     100,
	MaxFailedAttempts:  10,
	DefaultExpiryHours: 24,
	CleanupInterval:    time.Minute,
}

// loader funcs are package vars so tests can inject failures.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
}

var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("safe_path", validSafePath)
}

// Load merges defaults with the environment and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       StringToDuration(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.DefaultExpiryHours > cfg.MaxSecretDays*24 {
		return nil, fmt.Errorf("default_expiry_hours must not exceed max_secret_days")
	}
	if cfg.Store == "redis" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis_addr is required when store is redis")
	}
	return &cfg, nil
}

// SQLiteDSN builds the SQLite connection string for the configured data
// directory, enabling WAL journaling and foreign keys.
func (c *Config) SQLiteDSN() string {
	const params = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
	dir := c.DataDir
	if dir != "" && dir[len(dir)-1] == '/' {
		dir = dir[:len(dir)-1]
	}
	path := "veil.db"
	if dir != "" {
		path = dir + "/" + path
	}
	return "file:" + path + params
}

// validIPPort accepts "host:port" where host is empty or a literal IP and
// port is in [1, 65535]. Hostnames are rejected so the listener never blocks
// on resolution.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// validSafePath rejects empty paths, the filesystem root, and any path that
// escapes upward through "..".
func validSafePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == "/" {
		return false
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}
