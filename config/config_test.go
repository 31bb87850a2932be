package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(lookupFrom(nil))
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if cfg.Port != 3000 || cfg.WGPool != "10.8.0.0/24" || cfg.StatsInterval != time.Minute || cfg.WebhookWorkers != 8 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DBDSN != "/etc/wireguard/wg-rest-api.db" {
		t.Fatalf("unexpected sqlite dsn %q", cfg.DBDSN)
	}
	if cfg.ConfigPath() != "/etc/wireguard/wg0.conf" {
		t.Fatalf("unexpected config path %q", cfg.ConfigPath())
	}
	if got := cfg.AllowedIPs(); len(got) != 2 || got[0] != "0.0.0.0/0" || got[1] != "::/0" {
		t.Fatalf("unexpected allowed ips %v", got)
	}
}

const settings = `
wg_path: /srv/wg
wg_pool: 10.9.0.0/24
wg_port: 51000
stats_interval: 30s
webhooks_url: http://hooks.local/wg
`

func TestLoadSettingsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte(settings), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := LoadWith(lookupFrom(map[string]string{
		"SETTINGS_FILE": path,
		"WG_PORT":       "51999",
		"WG_HOST":       "vpn.example.com",
		"WG_KEYGEN":     "native",
		"PORT":          "",
	}))
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if cfg.WGPath != "/srv/wg" || cfg.WGPool != "10.9.0.0/24" || cfg.StatsInterval != 30*time.Second {
		t.Fatalf("settings file not applied: %+v", cfg)
	}
	if cfg.WGPort != 51999 || cfg.WGHost != "vpn.example.com" || cfg.WGKeygen != "native" {
		t.Fatalf("environment must override the file: %+v", cfg)
	}
	if cfg.Port != 3000 {
		t.Fatalf("empty variable must not override, got %d", cfg.Port)
	}
	if cfg.WebhooksURL != "http://hooks.local/wg" {
		t.Fatalf("unexpected webhooks url %q", cfg.WebhooksURL)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []map[string]string{
		{"PORT": "http"},
		{"STATS_INTERVAL": "often"},
		{"WG_RELOAD": "systemd"},
		{"DB_DRIVER": "postgres"},
		{"STATS_BACKEND": "redis"},
		{"WEBHOOK_WORKERS": "0"},
		{"WG_ALLOWED_IPS": "0.0.0.0/0, everything"},
		{"WG_ALLOWED_IPS": " , "},
		{"SETTINGS_FILE": "/does/not/exist.yml"},
	}
	for _, env := range tests {
		if _, err := LoadWith(lookupFrom(env)); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}
