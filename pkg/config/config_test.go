package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 11451 {
		t.Fatalf("port = %d, want default 11451", cfg.Server.Port)
	}
	if cfg.Server.APIPath != "/api/render/image" {
		t.Fatalf("api_path = %q", cfg.Server.APIPath)
	}
	if cfg.QRCode.TimeoutSeconds != 10 {
		t.Fatalf("qrcode timeout = %d, want 10", cfg.QRCode.TimeoutSeconds)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"server": {"port": 8080, "auth_token": "secret"},
		"templates": {"inline": [{"name": "card", "content": "<p>x</p>"}]}
	}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "secret" {
		t.Fatalf("auth_token = %q", cfg.Server.AuthToken)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("host = %q, default should survive partial config", cfg.Server.Host)
	}
	if len(cfg.Templates.Inline) != 1 || cfg.Templates.Inline[0].Name != "card" {
		t.Fatalf("inline templates = %+v", cfg.Templates.Inline)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 8080}}`), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("RENDERBRIDGE_SERVER_PORT", "9090")
	t.Setenv("RENDERBRIDGE_SERVER_AUTH_TOKEN", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, env should win over file", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "from-env" {
		t.Fatalf("auth_token = %q", cfg.Server.AuthToken)
	}
}

func TestSaveConfig_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.AuthToken = "persisted"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Server.AuthToken != "persisted" {
		t.Fatalf("auth_token = %q after roundtrip", loaded.Server.AuthToken)
	}
}
