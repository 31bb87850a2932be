// Package config assembles the immutable runtime configuration from an
// optional YAML settings file and the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is built once at startup and passed by value to the components.
type Config struct {
	Port            int    `yaml:"port"`
	AuthToken       string `yaml:"auth_token"`
	AuthTokenDigest string `yaml:"auth_token_digest"`
	JWTSecret       string `yaml:"jwt_secret"`

	WGPath                string `yaml:"wg_path"`
	WGInterface           string `yaml:"wg_interface"`
	WGPool                string `yaml:"wg_pool"`
	WGPool6               string `yaml:"wg_pool_6"`
	WGHost                string `yaml:"wg_host"`
	WGPort                int    `yaml:"wg_port"`
	WGDNS                 string `yaml:"wg_dns"`
	WGAllowedIPs          string `yaml:"wg_allowed_ips"`
	WGPersistentKeepalive int    `yaml:"wg_persistent_keepalive"`
	WGPostUp              string `yaml:"wg_post_up"`
	WGPostDown            string `yaml:"wg_post_down"`
	WGKeygen              string `yaml:"wg_keygen"`
	WGStatus              string `yaml:"wg_status"`
	WGReload              string `yaml:"wg_reload"`
	StunServer            string `yaml:"stun_server"`

	DBDriver      string `yaml:"db_driver"`
	DBDSN         string `yaml:"db_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	StatsBackend  string `yaml:"stats_backend"`

	StatsInterval  time.Duration `yaml:"stats_interval"`
	WebhooksURL    string        `yaml:"webhooks_url"`
	WebhookWorkers int           `yaml:"webhook_workers"`

	// LogVerbosity enables logr V-levels up to this value.
	LogVerbosity int `yaml:"log_verbosity"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:                  3000,
		WGPath:                "/etc/wireguard",
		WGInterface:           "wg0",
		WGPool:                "10.8.0.0/24",
		WGPool6:               "fdcc:ad94:bacf:61a4::cafe:0/112",
		WGPort:                51820,
		WGDNS:                 "1.1.1.1",
		WGAllowedIPs:          "0.0.0.0/0, ::/0",
		WGPersistentKeepalive: 25,
		WGKeygen:              "command",
		WGStatus:              "command",
		WGReload:              "wg-quick",
		StunServer:            "stun.l.google.com:19302",
		DBDriver:              "sqlite",
		StatsBackend:          "db",
		StatsInterval:         time.Minute,
		WebhookWorkers:        8,
	}
}

// Load reads SETTINGS_FILE if set, then applies the environment on top.
func Load() (Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("SETTINGS_FILE"); ok && path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	env := envReader{lookup: lookup}
	env.setInt("PORT", &cfg.Port)
	env.setString("AUTH_TOKEN", &cfg.AuthToken)
	env.setString("AUTH_TOKEN_DIGEST", &cfg.AuthTokenDigest)
	env.setString("JWT_SECRET", &cfg.JWTSecret)
	env.setString("WG_PATH", &cfg.WGPath)
	env.setString("WG_INTERFACE", &cfg.WGInterface)
	env.setString("WG_POOL", &cfg.WGPool)
	env.setString("WG_POOL_6", &cfg.WGPool6)
	env.setString("WG_HOST", &cfg.WGHost)
	env.setInt("WG_PORT", &cfg.WGPort)
	env.setString("WG_DNS", &cfg.WGDNS)
	env.setString("WG_ALLOWED_IPS", &cfg.WGAllowedIPs)
	env.setInt("WG_PERSISTENT_KEEPALIVE", &cfg.WGPersistentKeepalive)
	env.setString("WG_POST_UP", &cfg.WGPostUp)
	env.setString("WG_POST_DOWN", &cfg.WGPostDown)
	env.setString("WG_KEYGEN", &cfg.WGKeygen)
	env.setString("WG_STATUS", &cfg.WGStatus)
	env.setString("WG_RELOAD", &cfg.WGReload)
	env.setString("STUN_SERVER", &cfg.StunServer)
	env.setString("DB_DRIVER", &cfg.DBDriver)
	env.setString("DB_DSN", &cfg.DBDSN)
	env.setString("REDIS_ADDR", &cfg.RedisAddr)
	env.setString("REDIS_PASSWORD", &cfg.RedisPassword)
	env.setInt("REDIS_DB", &cfg.RedisDB)
	env.setString("STATS_BACKEND", &cfg.StatsBackend)
	env.setDuration("STATS_INTERVAL", &cfg.StatsInterval)
	env.setString("WEBHOOKS_URL", &cfg.WebhooksURL)
	env.setInt("WEBHOOK_WORKERS", &cfg.WebhookWorkers)
	env.setInt("LOG_VERBOSITY", &cfg.LogVerbosity)
	if env.err != nil {
		return Config{}, env.err
	}

	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite" {
		cfg.DBDSN = filepath.Join(cfg.WGPath, "wg-rest-api.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have a fixed set of choices or a range.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.WGPort <= 0 || c.WGPort > 65535 {
		return fmt.Errorf("config: WG_PORT must be between 1 and 65535, got %d", c.WGPort)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("config: STATS_INTERVAL must be positive, got %s", c.StatsInterval)
	}
	if c.WebhookWorkers <= 0 {
		return fmt.Errorf("config: WEBHOOK_WORKERS must be positive, got %d", c.WebhookWorkers)
	}

	choices := []struct {
		key, value string
		allowed    []string
	}{
		{"WG_KEYGEN", c.WGKeygen, []string{"command", "native"}},
		{"WG_STATUS", c.WGStatus, []string{"command", "wgctrl"}},
		{"WG_RELOAD", c.WGReload, []string{"wg-quick", "wgctrl", "none"}},
		{"DB_DRIVER", c.DBDriver, []string{"sqlite", "postgres", "memory"}},
		{"STATS_BACKEND", c.StatsBackend, []string{"db", "redis"}},
	}
	for _, ch := range choices {
		if !slices.Contains(ch.allowed, ch.value) {
			return fmt.Errorf("config: %s must be one of %s, got %q", ch.key, strings.Join(ch.allowed, ", "), ch.value)
		}
	}

	allowed := c.AllowedIPs()
	if len(allowed) == 0 {
		return fmt.Errorf("config: WG_ALLOWED_IPS must not be empty")
	}
	for _, ip := range allowed {
		if _, err := netip.ParsePrefix(ip); err != nil {
			return fmt.Errorf("config: WG_ALLOWED_IPS entry %q: %w", ip, err)
		}
	}

	if c.DBDriver == "postgres" && c.DBDSN == "" {
		return fmt.Errorf("config: DB_DSN is required for postgres")
	}
	if c.StatsBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("config: REDIS_ADDR is required for the redis stats backend")
	}
	return nil
}

// ConfigPath is the path of the rendered interface config.
func (c Config) ConfigPath() string {
	return filepath.Join(c.WGPath, c.WGInterface+".conf")
}

// AllowedIPs splits WGAllowedIPs into its entries.
func (c Config) AllowedIPs() []string {
	var out []string
	for _, ip := range strings.Split(c.WGAllowedIPs, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			out = append(out, ip)
		}
	}
	return out
}

// envReader collects the first conversion error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = d
}
