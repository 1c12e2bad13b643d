package config

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.EqualValues(t, DefaultAppConfig, *cfg)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VEIL_ADDR", "127.0.0.1:9090")
	t.Setenv("VEIL_BASE_URL", "https://veil.example.com")
	t.Setenv("VEIL_STORE", "redis")
	t.Setenv("VEIL_REDIS_ADDR", "localhost:6379")
	t.Setenv("VEIL_MAX_SECRET_VIEWS", "50")
	t.Setenv("VEIL_CLEANUP_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, "https://veil.example.com", cfg.BaseURL)
	assert.Equal(t, "redis", cfg.Store)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 50, cfg.MaxSecretViews)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
}

func TestInvalidStore(t *testing.T) {
	t.Setenv("VEIL_STORE", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store, got nil")
	}
}

func TestRedisStoreNeedsAddr(t *testing.T) {
	t.Setenv("VEIL_STORE", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for redis store without redis_addr, got nil")
	}
}

func TestValidPaths(t *testing.T) {
	valid := []string{
		"data",
		"/var/lib/veil",
		"./data",
		"relative/path/to/data",
		"nested/dir/structure",
	}
	for _, p := range valid {
		t.Setenv("VEIL_DATA_DIR", p)
		cfg, err := Load()
		if err != nil {
			t.Errorf("expected valid path %q, got error: %v", p, err)
			continue
		}
		if cfg.DataDir != p {
			t.Errorf("expected DataDir %q, got %q", p, cfg.DataDir)
		}
	}
}

func TestInvalidPaths(t *testing.T) {
	invalid := []string{
		"",
		".",
		"/",
		"//",
		"../data",
		"data/../../../etc",
	}
	for _, p := range invalid {
		t.Setenv("VEIL_DATA_DIR", p)
		_, err := Load()
		if err == nil {
			t.Errorf("expected error for invalid path %q, got nil", p)
			continue
		}
	}
}

func TestValidIPPort(t *testing.T) {
	type sample struct {
		Addr string `validate:"ip_port"`
	}

	v := validator.New()
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		t.Fatalf("register validation: %v", err)
	}

	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{name: "empty", addr: "", valid: false},
		{name: "missing_port", addr: "127.0.0.1", valid: false},
		{name: "missing_port_after_colon", addr: "127.0.0.1:", valid: false},
		{name: "just_colon_port", addr: ":8080", valid: true},
		{name: "loopback_ipv4", addr: "127.0.0.1:8080", valid: true},
		{name: "any_ipv4_low_port", addr: "0.0.0.0:1", valid: true},
		{name: "ipv6_loopback", addr: "[::1]:8080", valid: true},
		{name: "ipv6_any", addr: "[::]:443", valid: true},
		{name: "unbracketed_ipv6", addr: "::1:8080", valid: false},
		{name: "hostname_not_ip", addr: "localhost:8080", valid: false},
		{name: "non_numeric_port", addr: "127.0.0.1:http", valid: false},
		{name: "port_zero", addr: "127.0.0.1:0", valid: false},
		{name: "port_max_valid", addr: "127.0.0.1:65535", valid: true},
		{name: "port_overflow", addr: "127.0.0.1:65536", valid: false},
		{name: "negative_port", addr: "127.0.0.1:-1", valid: false},
		{name: "trailing_space", addr: "127.0.0.1:8080 ", valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := sample{Addr: tc.addr}
			err := v.Struct(&s)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	const params = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"

	tests := []struct {
		name    string
		dataDir string
		want    string
	}{
		{name: "default_config", dataDir: DefaultAppConfig.DataDir, want: "file:./data/veil.db" + params},
		{name: "relative_no_slash", dataDir: "data", want: "file:data/veil.db" + params},
		{name: "relative_trailing_slash", dataDir: "data/", want: "file:data/veil.db" + params},
		{name: "absolute_no_slash", dataDir: "/var/lib/veil", want: "file:/var/lib/veil/veil.db" + params},
		{name: "absolute_trailing_slash", dataDir: "/var/lib/veil/", want: "file:/var/lib/veil/veil.db" + params},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{DataDir: tt.dataDir}
			assert.Equal(t, tt.want, c.SQLiteDSN())
		})
	}
}

func TestLoadDefaultError(t *testing.T) {
	orig := defaultLoader
	t.Cleanup(func() { defaultLoader = orig })
	defaultLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestLoadEnvError(t *testing.T) {
	orig := envLoader
	t.Cleanup(func() { envLoader = orig })
	envLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestRegisterValidationFails(t *testing.T) {
	orig := registerValidators
	t.Cleanup(func() { registerValidators = orig })
	registerValidators = func(v *validator.Validate) error {
		assert.NotNil(t, v)
		return assert.AnError
	}
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestBadExpiryDefaults(t *testing.T) {
	t.Setenv("VEIL_MAX_SECRET_DAYS", "1")
	t.Setenv("VEIL_DEFAULT_EXPIRY_HOURS", "48") // more than a day
	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "default_expiry_hours must not exceed max_secret_days" {
		t.Fatalf("expected expiry ceiling error, got: %v", err)
	}
}
