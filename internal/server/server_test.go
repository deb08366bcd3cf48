package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/db"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/engine"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/migrate"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Token  string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := config.NewStore(config.Path(workspace))
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	e := engine.New(conn, cfg)
	handler, err := New(Config{
		Engine:   e,
		Store:    store,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Token:  mintToken(t),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func mintToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (s *testServer) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)
	res, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func simulateBody() map[string]any {
	return map[string]any{
		"orders": []map[string]any{
			{"order_id": "1001", "sku": "A", "quantity": 4, "line_total": "40"},
			{"order_id": "1001", "sku": "B", "quantity": 3, "line_total": "30"},
			{"order_id": "1002", "sku": "B", "quantity": 4, "line_total": "40"},
		},
		"stock": []map[string]any{
			{"sku": "A", "quantity": 10},
			{"sku": "B", "quantity": 5},
		},
	}
}

func TestHealthNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, err := http.Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, err := http.Get(srv.URL + "/v0/runs")
	if err != nil {
		t.Fatalf("get runs: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestCreateAndToggleRun(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := srv.doJSON(t, http.MethodPost, "/v0/runs", simulateBody())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create run status %d: %s", res.StatusCode, string(data))
	}
	var created RunResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if created.ID == "" || len(created.Orders) != 2 {
		t.Fatalf("unexpected run: %s", string(data))
	}
	if created.Ledger["B"] != 2 {
		t.Fatalf("ledger B = %d, want 2", created.Ledger["B"])
	}

	// 1002 lost the contested stock; toggling it on without force conflicts.
	res, data = srv.doJSON(t, http.MethodPost, "/v0/runs/"+created.ID+"/orders/1002/toggle", map[string]any{
		"fulfillable": true,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "insufficient_stock" {
		t.Fatalf("error code = %q: %s", envelope.Error.Code, string(data))
	}

	res, data = srv.doJSON(t, http.MethodPost, "/v0/runs/"+created.ID+"/orders/1002/toggle", map[string]any{
		"fulfillable": true,
		"force":       true,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forced toggle status %d: %s", res.StatusCode, string(data))
	}
	var toggled RunResponse
	if err := json.Unmarshal(data, &toggled); err != nil {
		t.Fatalf("unmarshal toggled run: %v", err)
	}
	if toggled.Ledger["B"] != -2 {
		t.Fatalf("forced deficit not visible: %d", toggled.Ledger["B"])
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := srv.doJSON(t, http.MethodGet, "/v0/runs/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestValidateRulesEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := srv.doJSON(t, http.MethodPost, "/v0/rules/validate", map[string]any{
		"rules": []map[string]any{{
			"name": "broken",
			"conditions": []map[string]any{
				{"field": "sku", "operator": "matches", "value": "x"},
			},
			"actions": []map[string]any{{"type": "SET_STATUS", "value": "ok"}},
		}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("validate status %d: %s", res.StatusCode, string(data))
	}
	var result ValidateRulesResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Valid || len(result.Errors) == 0 {
		t.Fatalf("broken rule reported valid: %s", string(data))
	}
}

func TestCreateRunRejectsNegativeQuantity(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := srv.doJSON(t, http.MethodPost, "/v0/runs", map[string]any{
		"orders": []map[string]any{
			{"order_id": "1001", "sku": "B", "quantity": -5},
		},
		"stock": []map[string]any{
			{"sku": "B", "quantity": 0},
		},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative quantity, got %d: %s", res.StatusCode, string(data))
	}
}

func TestListFieldsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := srv.doJSON(t, http.MethodGet, "/v0/rules/fields", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fields status %d: %s", res.StatusCode, string(data))
	}
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]bool{}
	for _, f := range fields {
		want[f] = true
	}
	for _, f := range []string{"sku", "quantity", "shipping_method"} {
		if !want[f] {
			t.Fatalf("field %s missing from %v", f, fields)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := srv.doJSON(t, http.MethodGet, "/v0/config", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get config status %d: %s", res.StatusCode, string(data))
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	cfg.Settings.RepeatNote = "seen before"

	res, data = srv.doJSON(t, http.MethodPut, "/v0/config", cfg)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put config status %d: %s", res.StatusCode, string(data))
	}

	res, data = srv.doJSON(t, http.MethodGet, "/v0/config", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reload config status %d: %s", res.StatusCode, string(data))
	}
	var reloaded config.Config
	if err := json.Unmarshal(data, &reloaded); err != nil {
		t.Fatalf("unmarshal reloaded config: %v", err)
	}
	if reloaded.Settings.RepeatNote != "seen before" {
		t.Fatalf("config update not persisted: %+v", reloaded.Settings)
	}
}

func TestPutConfigRejectsBadRules(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	cfg := config.Default()
	cfg.Rules = append(cfg.Rules, rules.Rule{Name: "broken"})
	res, data := srv.doJSON(t, http.MethodPut, "/v0/config", cfg)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("error code = %q: %s", envelope.Error.Code, string(data))
	}
}
