// Package server parses reversi server flags and runs the HTTP service.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jaminalder/codex-reversi/internal/app"
	"github.com/jaminalder/codex-reversi/internal/web"
)

// Config holds server command configuration.
type Config struct {
	Addr            string        `env:"REVERSI_ADDR" envDefault:":8080"`
	Heartbeat       time.Duration `env:"REVERSI_SSE_HEARTBEAT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"REVERSI_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	RequestLog      bool          `env:"REVERSI_REQUEST_LOG" envDefault:"true"`
}

// ParseConfig loads environment defaults and then applies flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "SSE heartbeat interval")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.BoolVar(&cfg.RequestLog, "request-log", cfg.RequestLog, "log every HTTP request")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Handler builds the HTTP handler for cfg around a fresh board service.
func Handler(cfg Config) http.Handler {
	return web.NewServerWithOptions(app.NewService(), web.Options{
		Heartbeat:  cfg.Heartbeat,
		RequestLog: cfg.RequestLog,
	})
}

// Run serves on cfg.Addr until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, ln, cfg)
}

// Serve runs the HTTP server on ln until ctx ends, then shuts down within
// cfg.ShutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, cfg Config) error {
	srv := &http.Server{
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	log.Printf("listening on %s", ln.Addr())
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := srv.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
