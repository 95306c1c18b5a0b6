package transcribe

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/deporecord/backend/config/transcribe"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           3000,
		FallbackPorts:  []int{3001, 3002},
		DeepgramAPIKey: "test-key",
		CacheTTL:       24 * time.Hour,
		SweepInterval:  0, // no background sweeper in tests
		MaxUploadBytes: 100 * 1024 * 1024,
		RequestTimeout: time.Minute,
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(testConfig(), log)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv.Router()
}

func TestNew_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.DeepgramAPIKey = ""
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := New(cfg, log); err == nil {
		t.Fatal("expected server construction to fail without an API key")
	}
}

func TestRouter_OptionsPreflight(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/api/transcribe", "/api/health", "/anything"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("OPTIONS %s: expected 204, got %d", path, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("OPTIONS %s: expected empty body, got %q", path, rec.Body.String())
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("OPTIONS %s: expected Allow-Origin *, got %q", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
			t.Errorf("OPTIONS %s: expected Allow-Methods 'POST, OPTIONS', got %q", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
			t.Errorf("OPTIONS %s: expected Allow-Headers Content-Type, got %q", path, got)
		}
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	if body["error"] != "Not found" {
		t.Errorf(`expected {"error":"Not found"}, got %s`, rec.Body.String())
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/transcribe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	if body["error"] != "Method not allowed" {
		t.Errorf(`expected {"error":"Method not allowed"}, got %s`, rec.Body.String())
	}
}

func TestRouter_HealthThroughFullStack(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS header on actual requests, got %q", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to grab a free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestListen_FallsBackWhenPortTaken(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer occupied.Close()

	cfg := testConfig()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port
	cfg.FallbackPorts = []int{freePort(t)}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, log)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Close()

	listener, port, err := srv.listen()
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	defer listener.Close()

	if port != cfg.FallbackPorts[0] {
		t.Errorf("expected to bind fallback port %d, got %d", cfg.FallbackPorts[0], port)
	}
}

func TestListen_FailsWhenNoPortsFree(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer occupied.Close()

	cfg := testConfig()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port
	cfg.FallbackPorts = nil

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, log)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Close()

	if _, _, err := srv.listen(); err == nil {
		t.Error("expected an error when every port is taken")
	}
}
