package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/auth"
	"github.com/dagbolade/install-integrity-sidecar/internal/server"
	"github.com/dagbolade/install-integrity-sidecar/internal/telemetry"
	"github.com/stretchr/testify/require"
)

// TestEnvironment wires the real store, reporter and server together.
type TestEnvironment struct {
	AuditStore  audit.Store
	AuthManager *auth.Manager
	HTTPServer  *httptest.Server
	DBPath      string
	t           *testing.T
}

func SetupTestEnvironment(t *testing.T, requireAuth bool) *TestEnvironment {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "integrity.db")

	auditStore, err := audit.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	authManager := auth.NewManager(auth.Config{
		RequireAuth:     requireAuth,
		JWTSecret:       "test-secret",
		TokenExpiration: time.Hour,
		Users:           "pipeline@example.com:pw:Pipeline:reporter;ops@example.com:pw:Ops:viewer",
	})

	cfg := server.Config{
		Port:            8080,
		ReadTimeout:     30,
		WriteTimeout:    30,
		ShutdownTimeout: 5,
		BodyLimit:       "1M",
	}
	srv := server.New(cfg, telemetry.NewReporter(auditStore), auditStore, authManager)

	env := &TestEnvironment{
		AuditStore:  auditStore,
		AuthManager: authManager,
		HTTPServer:  httptest.NewServer(srv.Handler()),
		DBPath:      dbPath,
		t:           t,
	}

	t.Cleanup(func() {
		env.HTTPServer.Close()
		env.AuditStore.Close()
	})

	return env
}

func (e *TestEnvironment) BaseURL() string {
	return e.HTTPServer.URL
}

// Login returns a token for one of the configured users.
func (e *TestEnvironment) Login(email string) string {
	e.t.Helper()

	resp, body := e.Do(http.MethodPost, "/login", map[string]string{"email": email, "password": "pw"}, "")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	token, ok := body["token"].(string)
	require.True(e.t, ok, "login response has no token")
	return token
}

// Do sends a JSON request and returns the response with its decoded body.
func (e *TestEnvironment) Do(method, path string, payload any, token string) (*http.Response, map[string]any) {
	e.t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(e.t, json.NewEncoder(&body).Encode(payload))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, e.BaseURL()+path, &body)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPServer.Client().Do(req)
	require.NoError(e.t, err)

	defer resp.Body.Close()

	decoded := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func CheckPayload(effect string, rule json.RawMessage) map[string]any {
	payload := map[string]any{
		"install": map[string]any{
			"package_name":   "com.example.app",
			"version_code":   42,
			"installer_name": "com.example.store",
		},
		"effect": effect,
	}
	if rule != nil {
		payload["rule"] = rule
	}
	return payload
}
