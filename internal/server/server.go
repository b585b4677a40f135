package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/mcp"
	"reddit-alpha-agent/internal/metrics"
	"reddit-alpha-agent/internal/runlog"
	"reddit-alpha-agent/internal/server/handlers"
	"reddit-alpha-agent/internal/store"
)

// Deps are what the tool server exposes.
type Deps struct {
	Tools           *handlers.Tools
	Runs            runlog.Store
	RedditConnected bool
	FinterConnected bool
}

// Server is the HTTP tool server.
type Server struct {
	cfg     store.ServerConfig
	handler http.Handler
	server  *http.Server
}

func New(cfg store.ServerConfig, d Deps) *Server {
	return &Server{cfg: cfg, handler: routes(d)}
}

func routes(d Deps) http.Handler {
	dispatcher := mcp.NewDispatcher(d.Tools.Definitions()...)
	health := handlers.NewHealthHandler(d.RedditConnected, d.FinterConnected)
	tools := handlers.NewToolsHandler(dispatcher)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Handle)
	mux.HandleFunc("GET /mcp/tools", tools.Handle)
	mux.Handle("POST /mcp", dispatcher)
	mux.Handle("GET /metrics", metrics.Handler())
	if d.Runs != nil {
		mux.HandleFunc("GET /runs", handlers.NewRunsHandler(d.Runs).Handle)
	}

	mux.HandleFunc("POST /tools/scrape_reddit", handlers.Endpoint("scrape_reddit", d.Tools.ScrapeReddit))
	mux.HandleFunc("POST /tools/analyze_sentiment", handlers.Endpoint("analyze_sentiment", d.Tools.AnalyzeSentiment))
	mux.HandleFunc("POST /tools/generate_alpha", handlers.Endpoint("generate_alpha", d.Tools.GenerateAlpha))
	mux.HandleFunc("POST /tools/submit_to_finter", handlers.Endpoint("submit_to_finter", d.Tools.SubmitToFinter))

	return requestLog(mux)
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug(r.Context(), "HTTP request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

// Handler returns the routed handler without a listener.
func (s *Server) Handler() http.Handler { return s.handler }

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
	}
	logger.Info(context.Background(), "Starting HTTP server", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
