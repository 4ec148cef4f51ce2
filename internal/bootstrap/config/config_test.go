package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: test.sqlite\n")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
	if cfg.Cache.Backend != CacheBackendSQLite {
		t.Fatalf("cache.backend = %q", cfg.Cache.Backend)
	}
	if len(cfg.Confirmation.PostTypes) != 2 || cfg.Confirmation.PostTypes[0] != "post" {
		t.Fatalf("post_types = %v", cfg.Confirmation.PostTypes)
	}
	if cfg.Security.NonceLifetime != 24*time.Hour || cfg.Security.NonceSecret == "" {
		t.Fatalf("security = %+v", cfg.Security)
	}
	if cfg.Auth.UserHeader != "X-Remote-User" {
		t.Fatalf("auth.user_header = %q", cfg.Auth.UserHeader)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: test.sqlite
cache:
  backend: Memory
confirmation:
  post_types: [post, Policy]
  type_labels:
    policy: policy document
security:
  nonce_secret: from-file
  nonce_lifetime: 1h
`)
	t.Setenv("RC_SECURITY_NONCE_SECRET", "from-env")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Fatalf("cache.backend = %q", cfg.Cache.Backend)
	}
	if got := cfg.Confirmation.PostTypes; len(got) != 2 || got[1] != "policy" {
		t.Fatalf("post_types = %v", got)
	}
	if cfg.Confirmation.TypeLabels["policy"] != "policy document" {
		t.Fatalf("type_labels = %v", cfg.Confirmation.TypeLabels)
	}
	if cfg.Security.NonceSecret != "from-env" || cfg.Security.NonceLifetime != time.Hour {
		t.Fatalf("security = %+v", cfg.Security)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown cache":      "database:\n  dsn: x.sqlite\ncache:\n  backend: memcached\n",
		"redis without addr": "database:\n  dsn: x.sqlite\ncache:\n  backend: redis\n",
		"short lifetime":     "database:\n  dsn: x.sqlite\nsecurity:\n  nonce_lifetime: 1s\n",
		"empty dsn":          "database:\n  dsn: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(context.Background(), writeConfig(t, body)); err == nil {
				t.Fatalf("Load() expected error")
			}
		})
	}
}
