package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"httpsserve/internal/certload"
	"httpsserve/internal/cors"
	"httpsserve/internal/fileserver"
	"httpsserve/internal/metrics"
	"httpsserve/internal/ratelimit"
	"httpsserve/internal/request"
)

const (
	pruneInterval = time.Minute
	pruneIdle     = 5 * time.Minute
)

// Server serves the files under Config.Root over HTTPS. Every response
// carries the CORS headers from package cors.
type Server struct {
	config  Config
	cert    tls.Certificate
	files   *fileserver.Handler
	metrics *metrics.Metrics    // nil unless MetricsAddr is set
	limiter *ratelimit.Registry // nil unless RateLimit > 0
	logger  *slog.Logger
	stdout  io.Writer
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the default stderr logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStdout redirects the startup banner, which goes to os.Stdout by default.
func WithStdout(w io.Writer) Option {
	return func(s *Server) { s.stdout = w }
}

// New validates cfg, loads the TLS key pair and prepares the served root.
// Any error here is fatal for the process.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := parseLevel(cfg.LogLevel)

	s := &Server{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})),
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	cert, err := certload.Load(cfg.CertFile, cfg.KeyFile, cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	s.cert = cert

	files, err := fileserver.New(cfg.Root, s.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize file server: %w", err)
	}
	s.files = files

	if cfg.MetricsAddr != "" {
		s.metrics = metrics.New()
	}
	if cfg.RateLimit > 0 {
		s.limiter = ratelimit.NewRegistry(cfg.RateLimit, cfg.RateBurst)
	}
	return s, nil
}

// Handler returns the full request pipeline:
// CORS headers -> access log and metrics -> rate limit -> files.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.files
	if s.limiter != nil {
		keyFn := func(r *http.Request) string {
			return request.ClientIP(r, s.config.TrustProxy)
		}
		var onLimited func(*http.Request)
		if s.metrics != nil {
			onLimited = func(*http.Request) { s.metrics.ObserveRateLimited() }
		}
		h = s.limiter.Middleware(keyFn, onLimited, h)
	}
	h = observe(s.logger, s.metrics, s.config.TrustProxy, h)
	return cors.Middleware(h)
}

// TLSConfig returns the TLS context shared by every connection.
func (s *Server) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{s.cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// Run binds the configured address and serves until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, wrapping each in TLS. It takes
// ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         s.TLSConfig(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		// Handshake failures and malformed requests end up here.
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}
	servers := []serving{{
		name: "https",
		srv:  srv,
		run:  func() error { return srv.ServeTLS(ln, "", "") },
	}}

	if s.metrics != nil {
		mln, err := net.Listen("tcp", s.config.MetricsAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen on %s for metrics: %w", s.config.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", s.metrics.Handler())
		msrv := &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		}
		servers = append(servers, serving{
			name: "metrics",
			srv:  msrv,
			run:  func() error { return msrv.Serve(mln) },
		})
		s.logger.Info("serving metrics", "addr", mln.Addr().String())
	}

	port := s.config.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	printBanner(s.stdout, port)
	s.logger.Info("serving HTTPS",
		"addr", ln.Addr().String(),
		"root", s.files.Root(),
		"cert", s.config.CertFile,
	)
	for _, u := range lanURLs(port) {
		s.logger.Info("reachable on local network", "url", u)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.limiter != nil {
		go s.pruneLimiter(ctx)
	}

	return s.listenAndShutdown(ctx, servers)
}

type serving struct {
	name string
	srv  *http.Server
	run  func() error
}

// listenAndShutdown runs every server until one fails, ctx is cancelled,
// or an OS signal arrives, then shuts all of them down.
func (s *Server) listenAndShutdown(ctx context.Context, servers []serving) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(servers))
	for _, sv := range servers {
		go func() {
			if err := sv.run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", sv.name, err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully...")
	}

	shutdownCtx := context.Background()
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.config.ShutdownTimeout)
		defer cancel()
	}
	for _, sv := range servers {
		if err := sv.srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutdown %s server: %w", sv.name, err)
		}
	}
	if runErr == nil {
		s.logger.Info("shutdown complete")
	}
	return runErr
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(pruneIdle); n > 0 {
				s.logger.Debug("pruned idle rate limiters", "count", n)
			}
		}
	}
}
