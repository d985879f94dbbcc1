package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/auth"
	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	"github.com/dagbolade/install-integrity-sidecar/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuditStore struct {
	entries []audit.Entry
	err     error
}

func (m *mockAuditStore) Log(ctx context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditStore) GetAll(ctx context.Context) ([]audit.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockAuditStore) Summary(ctx context.Context) (map[integrity.Response]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := map[integrity.Response]int{}
	for _, e := range m.entries {
		counts[e.Response]++
	}
	return counts, nil
}

func (m *mockAuditStore) Close() error { return nil }

func newTestServer(store *mockAuditStore, requireAuth bool) (*Server, *auth.Manager) {
	authManager := auth.NewManager(auth.Config{
		RequireAuth: requireAuth,
		JWTSecret:   "test-secret",
	})
	cfg := Config{Port: 8080, ShutdownTimeout: 2, BodyLimit: "1M"}
	return New(cfg, telemetry.NewReporter(store), store, authManager), authManager
}

func postCheck(srv *Server, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const (
	installJSON   = `{"package_name":"com.example.app","version_code":7,"installer_name":"com.sideload"}`
	installerRule = `{"id":"r2","effect":"deny","formula":{"key":"INSTALLER_NAME","value":"com.sideload"}}`
	overrideRule  = `{"id":"r1","effect":"force_allow","formula":{"connector":"AND","operands":[{"key":"PACKAGE_NAME","value":"com.example.app"},{"key":"APP_CERTIFICATE","value":"abcd"}]}}`
)

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(&mockAuditStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCheckEndpoint(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantResponse  string
		wantCode      int32
		wantRuleID    string
		wantInstaller bool
	}{
		{
			name:         "default allow",
			body:         `{"install":` + installJSON + `,"effect":"allow"}`,
			wantResponse: "ALLOWED",
			wantCode:     1,
		},
		{
			name:         "allow with null rule",
			body:         `{"install":` + installJSON + `,"effect":"allow","rule":null}`,
			wantResponse: "ALLOWED",
			wantCode:     1,
		},
		{
			name:         "force allow",
			body:         `{"install":` + installJSON + `,"effect":"allow","rule":` + overrideRule + `}`,
			wantResponse: "FORCE_ALLOWED",
			wantCode:     3,
			wantRuleID:   "r1",
		},
		{
			name:          "deny",
			body:          `{"install":` + installJSON + `,"effect":"deny","rule":` + installerRule + `}`,
			wantResponse:  "REJECTED",
			wantCode:      2,
			wantRuleID:    "r2",
			wantInstaller: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockAuditStore{}
			srv, _ := newTestServer(store, false)

			rec := postCheck(srv, tt.body, "")
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var resp CheckResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.ReportID)
			assert.Equal(t, tt.wantResponse, resp.Response)
			assert.Equal(t, tt.wantCode, resp.ResponseCode)
			assert.Equal(t, tt.wantRuleID, resp.RuleID)
			assert.Equal(t, tt.wantInstaller, resp.InstallerCause)
			assert.False(t, resp.AppCertCause)

			require.Len(t, store.entries, 1)
			assert.Equal(t, resp.ReportID, store.entries[0].ReportID)
		})
	}
}

func TestCheckEndpointRejectsRulelessDeny(t *testing.T) {
	store := &mockAuditStore{}
	srv, _ := newTestServer(store, false)

	rec := postCheck(srv, `{"install":`+installJSON+`,"effect":"deny"}`, "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), integrity.ErrDenyWithoutRule.Error())
	assert.Empty(t, store.entries)
}

func TestCheckEndpointBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"install":`},
		{"unknown effect", `{"install":` + installJSON + `,"effect":"block"}`},
		{"missing effect", `{"install":` + installJSON + `}`},
		{"invalid rule", `{"install":` + installJSON + `,"effect":"deny","rule":{"id":"r","effect":"deny","formula":{"key":"STAMP"}}}`},
		{"missing package", `{"install":{},"effect":"allow"}`},
		{"rule mixing compound and atom", `{"install":` + installJSON + `,"effect":"deny","rule":{"id":"r","effect":"deny","formula":{"connector":"AND","key":"APP_CERTIFICATE","operands":[{"key":"PACKAGE_NAME","value":"a"},{"key":"PACKAGE_NAME","value":"b"}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockAuditStore{}
			srv, _ := newTestServer(store, false)

			rec := postCheck(srv, tt.body, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, store.entries)
		})
	}
}

func TestCheckEndpointWarnsOnEffectMismatch(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	store := &mockAuditStore{}
	srv, _ := newTestServer(store, false)

	rec := postCheck(srv, `{"install":`+installJSON+`,"effect":"deny","rule":`+overrideRule+`}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.entries, 1)
	assert.Contains(t, buf.String(), "outcome effect disagrees with rule effect")
	assert.Contains(t, buf.String(), `"rule_effect":"force_allow"`)

	buf.Reset()
	rec = postCheck(srv, `{"install":`+installJSON+`,"effect":"deny","rule":`+installerRule+`}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, buf.String(), "disagrees")
}

func TestCheckEndpointStoreFailure(t *testing.T) {
	srv, _ := newTestServer(&mockAuditStore{err: errors.New("locked")}, false)

	rec := postCheck(srv, `{"install":`+installJSON+`,"effect":"allow"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckEndpointRequiresReporterRole(t *testing.T) {
	store := &mockAuditStore{}
	srv, manager := newTestServer(store, true)
	body := `{"install":` + installJSON + `,"effect":"allow"}`

	assert.Equal(t, http.StatusUnauthorized, postCheck(srv, body, "").Code)

	viewer, err := manager.GenerateToken(auth.User{ID: "v", Roles: []string{auth.RoleViewer}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, postCheck(srv, body, viewer).Code)

	reporter, err := manager.GenerateToken(auth.User{ID: "r", Roles: []string{auth.RoleReporter}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, postCheck(srv, body, reporter).Code)
}

func TestReportsEndpoint(t *testing.T) {
	store := &mockAuditStore{
		entries: []audit.Entry{
			{
				ID:          1,
				ReportID:    "a",
				Timestamp:   time.Now(),
				PackageName: "com.example.app",
				Effect:      integrity.EffectDeny,
				Response:    integrity.ResponseRejected,
				RuleID:      "r2",
			},
		},
	}
	srv, _ := newTestServer(store, false)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Total   int `json:"total"`
		Entries []struct {
			Effect   string `json:"effect"`
			Response int    `json:"response"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	assert.Equal(t, "deny", response.Entries[0].Effect)
	assert.Equal(t, 2, response.Entries[0].Response)
}

func TestReportsEndpointStoreFailure(t *testing.T) {
	srv, _ := newTestServer(&mockAuditStore{err: errors.New("closed")}, false)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	store := &mockAuditStore{}
	srv, _ := newTestServer(store, false)

	postCheck(srv, `{"install":`+installJSON+`,"effect":"allow"}`, "")
	postCheck(srv, `{"install":`+installJSON+`,"effect":"deny","rule":`+installerRule+`}`, "")
	postCheck(srv, `{"install":`+installJSON+`,"effect":"deny","rule":`+installerRule+`}`, "")

	req := httptest.NewRequest(http.MethodGet, "/reports/summary", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"allowed":1,"rejected":2,"force_allowed":0}`, rec.Body.String())
}

func TestServerShutdown(t *testing.T) {
	srv, _ := newTestServer(&mockAuditStore{}, false)
	srv.config.Port = 8888

	go func() {
		srv.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	assert.NoError(t, srv.Shutdown(ctx))
}
