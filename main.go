package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"httpsserve/internal/server"
	"httpsserve/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	defaults := server.DefaultConfig()
	return &cli.App{
		Name:    "httpsserve",
		Usage:   "serve a directory over HTTPS with permissive CORS headers",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "interface address to bind (empty for all)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTPS listen port",
				Value:   defaults.Port,
			},
			&cli.StringFlag{
				Name:  "cert",
				Usage: "certificate file (PEM with key, or .p12/.pfx)",
				Value: defaults.CertFile,
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "private key file when not contained in --cert",
			},
			&cli.StringFlag{
				Name:  "cert-password",
				Usage: "password for a PKCS#12 certificate bundle",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"d"},
				Usage:   "directory to serve",
				Value:   defaults.Root,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: defaults.LogLevel,
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "requests per second allowed per client (0 disables)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := server.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, &cfg)

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(context.Background())
}

// applyFlags overrides cfg with flags given explicitly on the command line,
// which take priority over the config file and environment.
func applyFlags(c *cli.Context, cfg *server.Config) {
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("cert") {
		cfg.CertFile = c.String("cert")
	}
	if c.IsSet("key") {
		cfg.KeyFile = c.String("key")
	}
	if c.IsSet("cert-password") {
		cfg.CertPassword = c.String("cert-password")
	}
	if c.IsSet("root") {
		cfg.Root = c.String("root")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimit = c.Float64("rate-limit")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
}
