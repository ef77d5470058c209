package server

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8443 {
		t.Errorf("Port = %d, want 8443", cfg.Port)
	}
	if cfg.CertFile != "server.pem" {
		t.Errorf("CertFile = %q, want server.pem", cfg.CertFile)
	}
	if cfg.Root != "." {
		t.Errorf("Root = %q, want .", cfg.Root)
	}
	if cfg.Addr() != ":8443" {
		t.Errorf("Addr = %q, want :8443", cfg.Addr())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_NoSources(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpsserve.yaml")
	yaml := `port: 9443
cert_file: /etc/httpsserve/server.pem
root: /srv/www
read_header_timeout: 3s
rate_limit: 5
trust_proxy: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTPSSERVE_PORT", "10443")
	t.Setenv("HTTPSSERVE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 10443 {
		t.Errorf("Port = %d, want env override 10443", cfg.Port)
	}
	if cfg.CertFile != "/etc/httpsserve/server.pem" {
		t.Errorf("CertFile = %q", cfg.CertFile)
	}
	if cfg.Root != "/srv/www" {
		t.Errorf("Root = %q", cfg.Root)
	}
	if cfg.ReadHeaderTimeout != 3*time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want 3s", cfg.ReadHeaderTimeout)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %v, want 5", cfg.RateLimit)
	}
	if !cfg.TrustProxy {
		t.Error("TrustProxy = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Untouched keys keep their defaults.
	if cfg.IdleTimeout != DefaultConfig().IdleTimeout {
		t.Errorf("IdleTimeout = %v, want default", cfg.IdleTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errSub string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"no cert", func(c *Config) { c.CertFile = "" }, "certificate"},
		{"no root", func(c *Config) { c.Root = "" }, "root"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"negative timeout", func(c *Config) { c.ReadTimeout = -time.Second }, "read_timeout"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "rate_limit"},
		{"zero burst", func(c *Config) { c.RateLimit = 1; c.RateBurst = 0 }, "rate_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("error = %v, want mention of %q", err, tt.errSub)
			}
		})
	}
}

func TestValidate_ReportsFirstNegativeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = -time.Second
	cfg.ShutdownTimeout = -time.Second
	cfg.ReadHeaderTimeout = -time.Second

	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil || err.Error() != "read_header_timeout must not be negative" {
			t.Fatalf("Validate() = %v, want read_header_timeout error", err)
		}
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, 8443)

	want := "HTTPS Server Running on https://localhost:8443\n" +
		"Access from phone: https://<your-ip-address>:8443\n" +
		"Note: You'll need to accept the security warning on your phone.\n"
	if buf.String() != want {
		t.Errorf("banner = %q, want %q", buf.String(), want)
	}
}
