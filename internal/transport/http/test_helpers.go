package http

import (
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codesync/codesync-server/internal/auth"
	"github.com/codesync/codesync-server/internal/config"
	"github.com/codesync/codesync-server/internal/presence"
	"github.com/codesync/codesync-server/internal/store"
	"github.com/codesync/codesync-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		return sqlite.ApplySchema(db)
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// testEnv bundles everything a handler test needs.
type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
}

// startTestServer boots a full server over an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	testStore := createTestStore(t)
	authService := createTestAuthService(t, testStore, "test-secret")

	registry := presence.NewRegistry()
	disabledLogger := zerolog.New(nil)
	manager := presence.NewManager(registry, &disabledLogger)
	router := presence.NewRouter(registry, &disabledLogger)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 20,
		MessagesPerMinute: 0,
		JWTSecret:         "test-secret",
	}

	server := NewServer(manager, router, authService, testStore, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: testStore, authService: authService}
}
