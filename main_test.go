package main

import (
	"testing"

	"github.com/urfave/cli/v2"

	"httpsserve/internal/server"
)

func TestApplyFlags(t *testing.T) {
	var got server.Config
	app := newApp()
	app.Action = func(c *cli.Context) error {
		got = server.DefaultConfig()
		applyFlags(c, &got)
		return nil
	}

	args := []string{"httpsserve", "--port", "9443", "--root", "/srv", "--key", "key.pem", "--rate-limit", "2.5"}
	if err := app.Run(args); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Port != 9443 {
		t.Errorf("Port = %d, want 9443", got.Port)
	}
	if got.Root != "/srv" {
		t.Errorf("Root = %q, want /srv", got.Root)
	}
	if got.KeyFile != "key.pem" {
		t.Errorf("KeyFile = %q, want key.pem", got.KeyFile)
	}
	if got.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", got.RateLimit)
	}
	if got.CertFile != "server.pem" {
		t.Errorf("CertFile = %q, want default server.pem", got.CertFile)
	}
}

func TestApplyFlags_UnsetKeepsConfig(t *testing.T) {
	var got server.Config
	app := newApp()
	app.Action = func(c *cli.Context) error {
		got = server.Config{Port: 1234, Root: "/from/env"}
		applyFlags(c, &got)
		return nil
	}

	if err := app.Run([]string{"httpsserve"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Port != 1234 || got.Root != "/from/env" {
		t.Errorf("flags with defaults overrode config: %+v", got)
	}
}
