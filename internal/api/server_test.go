package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-bridge/internal/audit"
	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/control"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
	_ "github.com/nerrad567/gray-logic-bridge/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

const testState = `{
  "data": {
    "STANZE": {
      "cucina": [
        {"nome": "tapparella sud", "codice": {"nome": "tapparella cucina sud", "porta": "tapparella", "nodo": 1}, "tipo": 1, "stato": 0, "statoDevice": false},
        {"nome": "tapparella lavandino", "codice": {"nome": "tapparella cucina lavandino", "porta": "tapparella", "nodo": 2}, "tipo": 1, "stato": 0, "statoDevice": false},
        {"nome": "luce tavolo", "codice": {"nome": "luce cucina tavolo", "porta": "do", "nodo": 3}, "tipo": 0, "stato": false, "statoDevice": false}
      ],
      "sala": [
        {"nome": "tapparella portafinestra", "codice": {"nome": "tapparella sala", "porta": "tapparella", "nodo": 4}, "tipo": 1, "stato": 100, "statoDevice": false},
        {"nome": "lampada", "tipo": 0, "stato": false}
      ]
    },
    "SCENARI": [
      {"nome": "Buonanotte", "codice": {"nome": "scena notte", "nr": 4}}
    ]
  }
}`

const testAliases = `{"luce cucina tavolo": ["luce da pranzo"]}`

type stubLink bool

func (s stubLink) IsConnected() bool { return bool(s) }

type testEnv struct {
	srv       *Server
	handler   http.Handler
	store     *catalog.Store
	audit     *audit.SQLiteRepository
	statePath string
}

type envOption func(*Deps)

func withAuth(d *Deps) {
	d.Security.JWT.Secret = testSecret
}

// testServer builds a server over a temp-dir catalog, an in-memory audit
// database and a running hub that doubles as the service's notifier.
func testServer(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state_clean.json")
	aliasesPath := filepath.Join(dir, "aliases.json")
	if err := os.WriteFile(statePath, []byte(testState), 0644); err != nil {
		t.Fatalf("writing state: %v", err)
	}
	if err := os.WriteFile(aliasesPath, []byte(testAliases), 0644); err != nil {
		t.Fatalf("writing aliases: %v", err)
	}
	store := catalog.NewStore(catalog.StoreConfig{StatePath: statePath, AliasesPath: aliasesPath})

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	repo := audit.NewSQLiteRepository(db.DB)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	wsCfg := config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(log)
	go hub.Run(ctx)

	svc, err := control.New(control.Deps{
		Store:    store,
		Engine:   resolve.NewEngine(resolve.Blinds()),
		Audit:    repo,
		Notifier: hub,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("control.New() error: %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:          wsCfg,
		Logger:      log,
		Service:     svc,
		Store:       store,
		Audit:       repo,
		MQTT:        stubLink(true),
		Controller:  stubLink(false),
		DB:          db,
		ExternalHub: hub,
		Version:     "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:       srv,
		handler:   srv.buildRouter(),
		store:     store,
		audit:     repo,
		statePath: statePath,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, w.Body.String())
	}
	return body
}

func (e *testEnv) device(t *testing.T, room string, index int) *catalog.Device {
	t.Helper()
	doc, err := e.store.LoadDocument(context.Background())
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	for _, r := range doc.Catalog.Rooms {
		if r.Name == room {
			return r.Devices[index]
		}
	}
	t.Fatalf("room %q not found", room)
	return nil
}

// --- Server lifecycle ---

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.Default()
	svc := &control.Service{}
	store := catalog.NewStore(catalog.StoreConfig{StatePath: "state.json"})

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Service: svc, Store: store}},
		{"no service", Deps{Logger: log, Store: store}},
		{"no store", Deps{Logger: log, Service: svc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

// --- Basic routes and middleware ---

func TestIndex(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if eps, ok := body["endpoints"].([]any); !ok || len(eps) != len(endpoints) {
		t.Errorf("endpoints = %v", body["endpoints"])
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if id := w.Header().Get("X-Request-ID"); len(id) != 2*requestIDBytes {
		t.Errorf("generated X-Request-ID = %q", id)
	}

	w = env.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-id-123")
	if id := w.Header().Get("X-Request-ID"); id != "client-id-123" {
		t.Errorf("X-Request-ID = %q, want client-id-123", id)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodOptions, "/api/v1/blind/set", "", "Origin", "http://panel.local")

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/devices", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetState(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/state", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %v", body["data"])
	}
	if _, ok := data["STANZE"].(map[string]any); !ok {
		t.Errorf("STANZE missing from %v", data)
	}
}

func TestGetState_Missing(t *testing.T) {
	env := testServer(t)
	if err := os.Remove(env.statePath); err != nil {
		t.Fatal(err)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/state", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- Commands ---

func TestDevicePower(t *testing.T) {
	for _, path := range []string{"/api/v1/device/power", "/device/power"} {
		t.Run(path, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, path, `{"name":"luce da pranzo","on":true}`)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["ok"] != true || body["room"] != "cucina" || body["name"] != "luce da pranzo" ||
				body["label"] != "luce cucina tavolo" || body["on"] != true {
				t.Errorf("body = %v", body)
			}

			dev := env.device(t, "cucina", 2)
			if on, ok := dev.Value.Bool(); !ok || !on || !dev.SetByBridge {
				t.Errorf("saved device = %+v", dev)
			}
		})
	}
}

func TestDevicePower_Truthiness(t *testing.T) {
	tests := []struct {
		on   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"yes"`, true},
		{`""`, false},
		{`[1]`, true},
		{`[]`, false},
		{`{"a":1}`, true},
		{`{}`, false},
		{`null`, false},
	}

	for _, tt := range tests {
		t.Run(tt.on, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, "/api/v1/device/power", `{"name":"luce tavolo","on":`+tt.on+`}`)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if got := decodeBody(t, w)["on"]; got != tt.want {
				t.Errorf("on = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		env := testServer(t)
		w := env.do(t, http.MethodPost, "/api/v1/device/power", `{"name":"luce tavolo"}`)
		if got := decodeBody(t, w)["on"]; got != false {
			t.Errorf("on = %v, want false", got)
		}
	})
}

func TestDevicePower_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"missing name", `{"on":true}`, http.StatusBadRequest, "name is required"},
		{"name not a string", `{"name":12,"on":true}`, http.StatusBadRequest, "name is required"},
		{"unparsable body", `{not json`, http.StatusBadRequest, "name is required"},
		{"unknown device", `{"name":"garage","on":true}`, http.StatusNotFound, "device not found: garage"},
		{"blind", `{"name":"tapparella sud","on":true}`, http.StatusBadRequest, "this is a blind: use /blind/set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, "/api/v1/device/power", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeBody(t, w)["message"]; got != tt.wantMsg {
				t.Errorf("message = %v, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestBlindSet(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRoom  string
		wantIndex int
		wantValue float64
	}{
		{"number", `{"name":"tapparella sud","value":40}`, "cucina", 0, 40},
		{"numeric string", `{"name":"tapparella sud","value":" 40.5 "}`, "cucina", 0, 40},
		{"clamped", `{"name":"tapparella sala","value":150}`, "sala", 0, 100},
		{"negative", `{"name":"tapparella lavandino","value":-3}`, "cucina", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, "/blind/set", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["ok"] != true || body["room"] != tt.wantRoom || body["value"] != tt.wantValue {
				t.Errorf("body = %v", body)
			}

			dev := env.device(t, tt.wantRoom, tt.wantIndex)
			if level, ok := dev.Value.Level(); !ok || float64(level) != tt.wantValue {
				t.Errorf("saved stato = %v, want %v", dev.Value.Interface(), tt.wantValue)
			}
		})
	}
}

func TestBlindSet_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"missing name", `{"value":10}`, http.StatusBadRequest, "name is required"},
		{"missing value", `{"name":"tapparella sud"}`, http.StatusBadRequest, "value is required"},
		{"null value", `{"name":"tapparella sud","value":null}`, http.StatusBadRequest, "value is required"},
		{"text value", `{"name":"tapparella sud","value":"half"}`, http.StatusBadRequest, "value must be numeric"},
		{"bool value", `{"name":"tapparella sud","value":true}`, http.StatusBadRequest, "value must be numeric"},
		{"NaN string", `{"name":"tapparella sud","value":"NaN"}`, http.StatusBadRequest, "value must be numeric"},
		{"not a blind", `{"name":"luce tavolo","value":10}`, http.StatusNotFound, "blind not found: luce tavolo"},
		{"unknown", `{"name":"garage","value":10}`, http.StatusNotFound, "blind not found: garage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, "/api/v1/blind/set", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decodeBody(t, w)["message"]; got != tt.wantMsg {
				t.Errorf("message = %v, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestBlindSet_Ambiguous(t *testing.T) {
	env := testServer(t)
	before, err := os.ReadFile(env.statePath)
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/v1/blind/set", `{"name":"tapparella cucina","value":40}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", w.Code, w.Body.String())
	}

	var resp AmbiguousResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Status != http.StatusConflict || resp.Code != ErrCodeAmbiguous ||
		resp.Message != control.ReasonRoomBlinds || resp.RequestedValue != 40 {
		t.Errorf("response = %+v", resp)
	}
	want := []control.Option{
		{Room: "cucina", Name: "tapparella cucina sud"},
		{Room: "cucina", Name: "tapparella cucina lavandino"},
	}
	if len(resp.Options) != len(want) || resp.Options[0] != want[0] || resp.Options[1] != want[1] {
		t.Errorf("options = %+v, want %+v", resp.Options, want)
	}

	after, err := os.ReadFile(env.statePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Error("state document changed on an ambiguous request")
	}
}

func TestSceneRun(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/scene/run", `{"name":"buonanotte"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["scene"] != "Buonanotte" {
		t.Errorf("body = %v", body)
	}

	w = env.do(t, http.MethodPost, "/api/v1/scene/run", `{"name":"festa"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown scene status = %d, want 404", w.Code)
	}
}

// --- Resolve ---

func TestResolve(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/resolve?q=tapparella+cucina&kind=blind", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got control.LookupResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !got.Generic || len(got.Members) != 2 {
		t.Errorf("generic = %v, members = %+v", got.Generic, got.Members)
	}
	for _, m := range got.Matches {
		if m.Kind != "blind" {
			t.Errorf("match %+v is not a blind", m)
		}
	}
}

func TestResolve_BadRequest(t *testing.T) {
	env := testServer(t)

	for _, path := range []string{"/api/v1/resolve", "/api/v1/resolve?q=luce&kind=lamp"} {
		if w := env.do(t, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, w.Code)
		}
	}
}

// --- Audit ---

func TestAuditLog(t *testing.T) {
	env := testServer(t)

	if w := env.do(t, http.MethodPost, "/api/v1/device/power", `{"name":"luce tavolo","on":true}`); w.Code != http.StatusOK {
		t.Fatalf("command status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/scene/run", `{"name":"Buonanotte"}`); w.Code != http.StatusOK {
		t.Fatalf("scene status = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/audit?action=command", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result audit.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 || result.Logs[0].EntityID != "cucina/luce tavolo" {
		t.Errorf("result = %+v", result)
	}

	w = env.do(t, http.MethodGet, "/api/v1/audit?limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if result.Total != 2 || len(result.Logs) != 1 || result.Limit != 1 {
		t.Errorf("paged result = %+v", result)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/audit?since=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", w.Code)
	}
}

// --- Metrics ---

func TestMetrics(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !m.Links.MQTT || m.Links.Controller || m.Links.InfluxDB {
		t.Errorf("links = %+v", m.Links)
	}
	if !m.Catalog.Available || m.Catalog.Rooms != 2 || m.Catalog.Devices != 5 || m.Catalog.Scenes != 1 {
		t.Errorf("catalog = %+v", m.Catalog)
	}
	if m.Database == nil || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
}

// --- Auth ---

func TestAuth(t *testing.T) {
	env := testServer(t, withAuth)

	valid := mintToken(t, "kitchen-panel", time.Hour)
	expired := signedToken(t, "kitchen-panel", time.Now().Add(-time.Minute))

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
	}{
		{"health is open", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"index is open", http.MethodGet, "/", "", http.StatusOK},
		{"state without token", http.MethodGet, "/api/v1/state", "", http.StatusUnauthorized},
		{"root command without token", http.MethodPost, "/device/power", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/api/v1/state", "Basic abc", http.StatusUnauthorized},
		{"expired token", http.MethodGet, "/api/v1/state", "Bearer " + expired, http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/api/v1/state", "Bearer " + valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header []string
			if tt.header != "" {
				header = []string{"Authorization", tt.header}
			}
			if w := env.do(t, tt.method, tt.path, "", header...); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuth_RecordsActor(t *testing.T) {
	env := testServer(t, withAuth)
	token := mintToken(t, "alexa", time.Hour)

	w := env.do(t, http.MethodPost, "/api/v1/blind/set", `{"name":"tapparella sud","value":30}`,
		"Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	result, err := env.audit.List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Logs) != 1 || result.Logs[0].UserID != "alexa" {
		t.Errorf("audit logs = %+v", result.Logs)
	}
}
