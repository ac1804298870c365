// Package server exposes the webhook endpoint and a health probe.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	logx "runrelay/pkg/logx"
)

const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultPath            = "/"
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// HealthPath is reserved for the health probe.
	HealthPath = "/healthz"
)

type Config struct {
	Addr            string
	Path            string
	MaxBodyBytes    int64
	RelayTimeout    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StatsFunc supplies the "stats" object of /healthz.
type StatsFunc func() any

// Server owns the HTTP listener.
type Server struct {
	cfg   Config
	log   logx.Logger
	mux   *http.ServeMux
	srv   *http.Server
	ln    net.Listener
	stats StatsFunc
}

func New(cfg Config, relay Relay, stats StatsFunc, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.Path = normalizePath(cfg.Path)
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	s := &Server{
		cfg:   cfg,
		log:   log.With(logx.String("comp", "server")),
		mux:   http.NewServeMux(),
		stats: stats,
	}
	s.mux.HandleFunc(HealthPath, s.healthz)
	s.mux.Handle(cfg.Path, NewHandler(relay, HandlerConfig{MaxBodyBytes: cfg.MaxBodyBytes, RelayTimeout: cfg.RelayTimeout}, log))
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler { return s.mux }

// Listen binds the configured address. Calling it before Serve lets the
// caller report readiness once the port is actually open.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Serve blocks until ctx is done, then shuts down within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()
	s.log.Info("listening", logx.String("addr", s.Addr()), logx.String("path", s.cfg.Path))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	if err != nil {
		_ = s.srv.Close()
	}
	s.log.Info("stopped")
	return err
}

type health struct {
	Status string `json:"status"`
	Stats  any    `json:"stats,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h := health{Status: "ok"}
	if s.stats != nil {
		h.Stats = s.stats()
	}
	writeJSON(w, http.StatusOK, h)
}

// CheckPath reports whether p can be used as the webhook path.
func CheckPath(p string) error {
	n := normalizePath(p)
	if n == HealthPath {
		return fmt.Errorf("path %q is reserved for the health probe", n)
	}
	// The mux treats whitespace as a method separator, braces as wildcards
	// and '%' as an escape.
	if strings.ContainsAny(n, " \t\r\n{}%") {
		return fmt.Errorf("path %q must not contain whitespace, braces or '%%'", n)
	}
	return nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
