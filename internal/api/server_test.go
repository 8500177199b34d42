package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-overrides/internal/audit"
	"github.com/nerrad567/gray-logic-overrides/internal/auth"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-overrides/internal/overrides"
	"github.com/nerrad567/gray-logic-overrides/internal/registry"
	"github.com/nerrad567/gray-logic-overrides/migrations"
)

// testServer creates a Server over a real registry backed by a temporary SQLite file.
func testServer(t *testing.T) (*Server, *registry.SQLiteAdapter, overrides.Paths) {
	t.Helper()
	return testServerWith(t, nil)
}

// testServerWith is testServer with a hook to adjust the dependencies.
func testServerWith(t *testing.T, mutate func(*Deps)) (*Server, *registry.SQLiteAdapter, overrides.Paths) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "host.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	adapter := registry.NewSQLiteAdapter(db.DB)
	if err := adapter.PutArea(ctx, registry.Area{ID: "kitchen", Name: "Kitchen"}); err != nil {
		t.Fatal(err)
	}
	for _, e := range []registry.Entry{
		{EntityID: "light.kitchen", OriginalName: "Kitchen", Name: "Cooker Light", AreaID: "kitchen"},
		{EntityID: "switch.fan", OriginalName: "Fan"},
	} {
		if err := adapter.Register(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	paths := overrides.Paths{BaseDir: filepath.Join(t.TempDir(), "overrides")}
	svc, err := overrides.NewService(adapter, overrides.Config{
		Paths:    paths,
		Defaults: overrides.Options{BackupRetention: 3, ExportAllEntities: true},
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	svc.SetHistory(audit.NewSQLiteRepository(db.DB))

	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	deps := Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Site:    config.SiteConfig{ID: "site-test", Name: "Test House"},
		Logger:  log,
		Service: svc,
		Version: "test",
		Checks:  map[string]HealthChecker{"database": db},
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, adapter, paths
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rec.Body.String())
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)

	if _, err := New(Deps{Service: &overrides.Service{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without service should fail")
	}
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Site       map[string]string `json:"site"`
	Components map[string]string `json:"components"`
}

// stubCheck is a HealthChecker returning a fixed error.
type stubCheck struct{ err error }

func (c stubCheck) HealthCheck(context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	decodeResponse(t, rec, &body)
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("body = %+v", body)
	}
	if body.Site["id"] != "site-test" || body.Site["name"] != "Test House" {
		t.Errorf("site = %v", body.Site)
	}
	if body.Components["database"] != "ok" {
		t.Errorf("components = %v, want database ok", body.Components)
	}
}

func TestHealth_ComponentFailure(t *testing.T) {
	srv, _, _ := testServerWith(t, func(d *Deps) {
		d.Checks["mqtt"] = stubCheck{err: errors.New("mqtt: client not connected")}
		d.Checks["influxdb"] = stubCheck{}
		d.Checks["unused"] = nil
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body healthResponse
	decodeResponse(t, rec, &body)
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	want := map[string]string{
		"database": "ok",
		"influxdb": "ok",
		"mqtt":     "mqtt: client not connected",
	}
	if len(body.Components) != len(want) {
		t.Errorf("components = %v, want %v", body.Components, want)
	}
	for name, state := range want {
		if body.Components[name] != state {
			t.Errorf("components[%s] = %q, want %q", name, body.Components[name], state)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "abc-123")
	}
}

func TestExport(t *testing.T) {
	srv, _, paths := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result overrides.ExportResult
	decodeResponse(t, rec, &result)
	if result.Entities != 2 {
		t.Errorf("Entities = %d, want 2", result.Entities)
	}
	if result.BackupPath == "" {
		t.Error("BackupPath should be set")
	}

	store, found, err := overrides.LoadStore(paths.Overrides())
	if err != nil || !found {
		t.Fatalf("LoadStore() found=%v err=%v", found, err)
	}
	rec1, ok := store["light.kitchen"]
	if !ok || rec1.FriendlyName == nil || *rec1.FriendlyName != "Cooker Light" {
		t.Errorf("light.kitchen record = %+v", rec1)
	}
}

func TestExport_DomainFilter(t *testing.T) {
	srv, _, paths := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/export", `{"include_domains":["switch"],"write_overrides":true,"write_backup":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	store, _, err := overrides.LoadStore(paths.Overrides())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store["light.kitchen"]; ok {
		t.Error("light.kitchen should be filtered out")
	}
	if _, ok := store["switch.fan"]; !ok {
		t.Error("switch.fan should be exported")
	}
}

func TestExport_InvalidJSON(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/export", `{"include_domains":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestImport(t *testing.T) {
	srv, adapter, paths := testServer(t)
	if err := paths.Ensure(); err != nil {
		t.Fatal(err)
	}
	content := "switch.fan:\n  friendly_name: Ceiling Fan\n  visible: false\n"
	if err := os.WriteFile(paths.Overrides(), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/import", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result overrides.ImportResult
	decodeResponse(t, rec, &result)
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}

	entry, err := adapter.Get(context.Background(), "switch.fan")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "Ceiling Fan" || !entry.Hidden() {
		t.Errorf("entry = %+v", entry)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed store",
			file:       "light.kitchen: [unclosed\n",
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "unknown entity in strict mode",
			file:       "light.garage:\n  friendly_name: Garage\n",
			body:       `{"merge":true,"strict_entities":true}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, paths := testServer(t)
			if err := paths.Ensure(); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(paths.Overrides(), []byte(tt.file), 0600); err != nil {
				t.Fatal(err)
			}

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/import", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var apiErr Error
			decodeResponse(t, rec, &apiErr)
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestFilePathsConfinedToStorage(t *testing.T) {
	srv, _, paths := testServer(t)
	outside := t.TempDir()
	victim := filepath.Join(outside, "elsewhere", "victim.conf")
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("db_pass: hunter2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		body string
	}{
		{"export absolute", "/api/v1/overrides/export", `{"path":"` + victim + `","write_overrides":true}`},
		{"export traversal", "/api/v1/overrides/export", `{"path":"../../victim.conf","write_overrides":true}`},
		{"import absolute", "/api/v1/overrides/import", `{"path":"` + secret + `"}`},
		{"import traversal", "/api/v1/overrides/import", `{"path":"../secret.txt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "hunter2") || strings.Contains(rec.Body.String(), "db_pass") {
				t.Errorf("response leaks file content: %s", rec.Body.String())
			}
		})
	}

	if _, err := os.Stat(victim); !os.IsNotExist(err) {
		t.Errorf("export wrote outside the storage directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(paths.BaseDir)), "victim.conf")); !os.IsNotExist(err) {
		t.Errorf("export followed the traversal: %v", err)
	}
}

func TestAuth(t *testing.T) {
	const secret = "api-test-secret-0123456789abcdefghij"
	srv, _, _ := testServerWith(t, func(d *Deps) {
		d.Config.Auth.JWTSecret = secret
	})

	valid, err := auth.GenerateToken("tester", secret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	forged, err := auth.GenerateToken("tester", "another-secret-0123456789abcdefghij", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
	}{
		{"health stays open", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"no token", http.MethodPost, "/api/v1/overrides/export", "", http.StatusUnauthorized},
		{"no token on reads", http.MethodGet, "/api/v1/overrides/backups", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodPost, "/api/v1/overrides/export", "Basic " + valid, http.StatusUnauthorized},
		{"forged token", http.MethodPost, "/api/v1/overrides/export", "Bearer " + forged, http.StatusUnauthorized},
		{"garbage token", http.MethodPut, "/api/v1/overrides/options", "Bearer abc", http.StatusUnauthorized},
		{"valid token", http.MethodPost, "/api/v1/overrides/export", "Bearer " + valid, http.StatusOK},
		{"valid token lower-case scheme", http.MethodGet, "/api/v1/overrides/options", "bearer " + valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("401 without WWW-Authenticate header")
				}
				var apiErr Error
				decodeResponse(t, rec, &apiErr)
				if apiErr.Code != ErrCodeUnauthorized {
					t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeUnauthorized)
				}
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"localhost", true},
		{"0.0.0.0", false},
		{"192.168.1.10", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isLoopback(tt.host); got != tt.want {
			t.Errorf("isLoopback(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestListBackups(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/backups", "")
	var empty struct {
		Backups []overrides.Backup `json:"backups"`
		Count   int                `json:"count"`
	}
	decodeResponse(t, rec, &empty)
	if empty.Count != 0 || empty.Backups == nil {
		t.Errorf("empty backups = %+v, want empty non-nil list", empty)
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/export", ""); rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/overrides/backups", "")
	var listed struct {
		Backups []overrides.Backup `json:"backups"`
		Count   int                `json:"count"`
	}
	decodeResponse(t, rec, &listed)
	if listed.Count != 1 || !strings.HasPrefix(listed.Backups[0].Name, "overrides-") {
		t.Errorf("backups = %+v", listed)
	}
}

func TestListDomains(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/domains", "")
	var body struct {
		Domains []string `json:"domains"`
	}
	decodeResponse(t, rec, &body)
	if len(body.Domains) != 2 || body.Domains[0] != "light" || body.Domains[1] != "switch" {
		t.Errorf("domains = %v, want [light switch]", body.Domains)
	}
}

func TestListHistory(t *testing.T) {
	srv, _, _ := testServer(t)

	if rec := doRequest(t, srv, http.MethodPost, "/api/v1/overrides/export", ""); rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/history?operation=export_overrides&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result audit.ListResult
	decodeResponse(t, rec, &result)
	if result.Total != 1 || len(result.Runs) != 1 {
		t.Fatalf("history = %+v, want 1 run", result)
	}
	if run := result.Runs[0]; run.Source != overrides.SourceAPI || !run.Success {
		t.Errorf("run = %+v, want successful api run", run)
	}
	if result.Limit != 10 {
		t.Errorf("Limit = %d, want 10", result.Limit)
	}

	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/history?limit=ten", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestOptions_GetAndUpdate(t *testing.T) {
	srv, _, paths := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/options", "")
	var opts overrides.Options
	decodeResponse(t, rec, &opts)
	if opts.BackupRetention != 3 || !opts.ExportAllEntities {
		t.Errorf("initial options = %+v", opts)
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/overrides/options", `{"backup_retention":5,"export_domains":["Light"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Options overrides.Options      `json:"options"`
		Export  *overrides.ExportResult `json:"export"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Options.BackupRetention != 5 {
		t.Errorf("BackupRetention = %d, want 5", resp.Options.BackupRetention)
	}
	if !resp.Options.ExportAllEntities {
		t.Error("omitted field ExportAllEntities should keep its value")
	}
	if len(resp.Options.ExportDomains) != 1 || resp.Options.ExportDomains[0] != "light" {
		t.Errorf("ExportDomains = %v, want [light]", resp.Options.ExportDomains)
	}
	if resp.Export != nil {
		t.Error("no export should run without export_now")
	}
	if _, err := os.Stat(paths.Options()); err != nil {
		t.Errorf("options file not written: %v", err)
	}
}

func TestOptions_ExportNow(t *testing.T) {
	srv, _, paths := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/overrides/options", `{"export_domains":["switch"],"export_now":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Export *overrides.ExportResult `json:"export"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Export == nil || resp.Export.Entities != 1 {
		t.Fatalf("export = %+v, want 1 entity", resp.Export)
	}

	data, err := os.ReadFile(paths.Options())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "export_now") {
		t.Error("export_now must not be persisted")
	}
}

func TestOptions_Invalid(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/overrides/options", `{"backup_retention":-1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _, _ := testServer(t)

	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodGet, "/api/v1/overrides/export", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET export status = %d, want 405", rec.Code)
	}
}

func TestStartAndClose(t *testing.T) {
	srv, _, _ := testServer(t)

	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
