// Package rest serves the admin endpoints: liveness, readiness, build info, metrics and pprof.
package rest

import (
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pathval/internal/infra/http/middleware"
	"pathval/internal/infra/metrics"
)

// Build info, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Options struct {
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	// AdminCIDRs gates /metrics and /debug/pprof.
	AdminCIDRs []*net.IPNet
	Pprof      bool
}

type Server struct {
	router chi.Router
	ready  atomic.Bool
}

func New(opts Options) *Server {
	s := &Server{router: chi.NewRouter()}
	r := s.router
	r.Use(middleware.RequestID, middleware.Logger(opts.Logger))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.readyz)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(buildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime})
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminGate(opts.AdminCIDRs))
		if opts.Registry != nil {
			r.Handle("/metrics", metrics.Handler(opts.Registry))
		}
		if opts.Pprof {
			r.HandleFunc("/debug/pprof/", pprof.Index)
			r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
			r.HandleFunc("/debug/pprof/profile", pprof.Profile)
			r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
			r.HandleFunc("/debug/pprof/trace", pprof.Trace)
			r.Handle("/debug/pprof/{profile}", http.HandlerFunc(pprof.Index))
		}
	})
	return s
}

func (s *Server) SetReady(v bool) { s.ready.Store(v) }

func (s *Server) Ready() bool { return s.ready.Load() }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	http.Error(w, "not ready", http.StatusServiceUnavailable)
}

func (s *Server) Handler() http.Handler { return s.router }
