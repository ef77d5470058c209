// Package server runs the HTTPS static file server: TLS setup, the request
// pipeline and graceful shutdown.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Example: HTTPSSERVE_PORT=9443
const EnvPrefix = "HTTPSSERVE_"

// Config holds the configuration for the file server. It is built once at
// startup and never modified afterwards.
type Config struct {
	// Host is the interface address to bind. Empty binds all interfaces.
	Host string `koanf:"host"`

	// Port is the TCP port to listen on.
	Port int `koanf:"port"`

	// CertFile holds the certificate chain, and the private key too when
	// KeyFile is empty. A .p12 or .pfx extension selects PKCS#12.
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// CertPassword decrypts PKCS#12 bundles.
	CertPassword string `koanf:"cert_password"`

	// Root is the served directory.
	Root string `koanf:"root"`

	LogLevel string `koanf:"log_level"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// TrustProxy makes client identification honour X-Forwarded-For and
	// Forwarded headers.
	TrustProxy bool `koanf:"trust_proxy"`

	// MetricsAddr, when set, serves Prometheus metrics over plain HTTP on
	// a separate listener. Example: "127.0.0.1:9090"
	MetricsAddr string `koanf:"metrics_addr"`
}

// DefaultConfig returns the configuration used when nothing is overridden:
// port 8443, server.pem, and the working directory as root.
func DefaultConfig() Config {
	return Config{
		Port:              8443,
		CertFile:          "server.pem",
		Root:              ".",
		LogLevel:          "info",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		RateBurst:         20,
	}
}

// Load builds a Config from defaults, an optional YAML file and HTTPSSERVE_*
// environment variables, in increasing order of priority.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// HTTPSSERVE_CERT_FILE -> cert_file
	envTransformer := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.CertFile == "" {
		return fmt.Errorf("certificate file is required")
	}
	if c.Root == "" {
		return fmt.Errorf("root directory is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"read_header_timeout", c.ReadHeaderTimeout},
		{"read_timeout", c.ReadTimeout},
		{"write_timeout", c.WriteTimeout},
		{"idle_timeout", c.IdleTimeout},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.d < 0 {
			return fmt.Errorf("%s must not be negative", t.name)
		}
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
