// Package transcribe wires the transcription gateway: router, CORS,
// pipeline dependencies, and the HTTP server lifecycle.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/deporecord/backend/config/transcribe"
	"github.com/deporecord/backend/gateways/transcribe/cache"
	"github.com/deporecord/backend/gateways/transcribe/clients/deepgram"
	"github.com/deporecord/backend/gateways/transcribe/handler"
	"github.com/deporecord/backend/gateways/transcribe/media"
	"github.com/deporecord/backend/gateways/transcribe/pipeline"
	pkgjson "github.com/deporecord/backend/pkg/json"
)

type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	handler *handler.Handler
	cache   *cache.TTLCache
}

func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}

	scratchDir := cfg.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	log.Debug("creating transcription gateway",
		slog.Int("port", cfg.Port),
		slog.String("scratch_dir", scratchDir),
		slog.Duration("cache_ttl", cfg.CacheTTL),
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Int64("max_upload_bytes", cfg.MaxUploadBytes))

	responseCache := cache.New(cfg.CacheTTL, cfg.SweepInterval)

	pipe := pipeline.New(
		media.NewNormalizer(),
		media.NewFetcher(scratchDir),
		deepgram.New(cfg.DeepgramAPIKey),
		responseCache,
		scratchDir,
		cfg.MaxUploadBytes,
	)

	h := handler.New(pipe, log, cfg.RequestTimeout)

	return &Server{
		cfg:     cfg,
		log:     log,
		handler: h,
		cache:   responseCache,
	}, nil
}

// Router builds the HTTP routing table, including the CORS/preflight
// behavior and the JSON 404/405 responses.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(preflight)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		pkgjson.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		pkgjson.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})

	s.handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// preflight answers every OPTIONS request with 204 and no body. The cors
// middleware would reply 200 to preflights; it still decorates the actual
// POST responses.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start binds the first free port from the configured list, serves until a
// shutdown signal or context cancellation, then drains gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer s.cache.Stop()

	listener, port, err := s.listen()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.log.Info("transcription gateway started",
			slog.Int("port", port),
			slog.String("endpoints", "POST /api/transcribe, GET /api/health"),
			slog.Int64("max_upload_mb", s.cfg.MaxUploadBytes/(1024*1024)))
		serverErrors <- srv.Serve(listener)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.log.Info("start shutdown", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.log.Info("closing server due to context cancellation")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		srv.Close()
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}

	s.log.Info("server stopped cleanly")
	return nil
}

// Close releases background resources. Start does this itself; Close exists
// for callers that never reach Start.
func (s *Server) Close() {
	s.cache.Stop()
}

// listen tries the primary port, then each fallback in order, and reports
// which one was bound.
func (s *Server) listen() (net.Listener, int, error) {
	ports := append([]int{s.cfg.Port}, s.cfg.FallbackPorts...)

	for _, port := range ports {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return listener, port, nil
		}
		if errors.Is(err, syscall.EADDRINUSE) {
			s.log.Warn("port already in use, trying next", slog.Int("port", port))
			continue
		}
		return nil, 0, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	return nil, 0, fmt.Errorf("no available ports in %v", ports)
}
