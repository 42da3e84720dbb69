package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/findosh/shiller/internal/broadcast"
	"github.com/findosh/shiller/internal/middleware"
	"github.com/findosh/shiller/internal/services/auth"
	"github.com/findosh/shiller/internal/services/registry"
	"github.com/findosh/shiller/internal/storage"
)

type testServer struct {
	router http.Handler
	auth   *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	authService := auth.NewService(storage.NewMemoryTrainerStore(), "test-secret", time.Hour)
	ctx := context.Background()
	for _, email := range []string{"formateur@demo.fr", "other@demo.fr"} {
		if err := authService.EnsureDemoTrainer(ctx, email, "demo123"); err != nil {
			t.Fatalf("Failed to seed trainer: %v", err)
		}
	}

	reg := registry.New(storage.NewMemoryStore(), broadcast.NewHub())
	router := NewRouter(New(reg, authService), RouterConfig{
		Auth:          middleware.NewAuth(authService),
		OriginAllowed: func(string) bool { return true },
	})
	return &testServer{router: router, auth: authService}
}

func (s *testServer) token(t *testing.T, email string) string {
	t.Helper()
	res, err := s.auth.Login(context.Background(), email, "demo123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func vitals(systolic, diastolic, heartRate, spo2 int) map[string]int {
	return map[string]int{"systolic": systolic, "diastolic": diastolic, "heartRate": heartRate, "spo2": spo2}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if decodeBody(t, rec)["status"] != "ok" {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"valid", map[string]string{"email": "formateur@demo.fr", "password": "demo123"}, http.StatusOK},
		{"wrong password", map[string]string{"email": "formateur@demo.fr", "password": "x"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "formateur@demo.fr"}, http.StatusBadRequest},
		{"malformed", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if tt.want == http.StatusOK && body["token"] == "" {
				t.Error("Expected token")
			}
			if tt.want != http.StatusOK && body["error"] == nil {
				t.Error("Expected error body")
			}
		})
	}
}

func TestSessions_RequireAuth(t *testing.T) {
	s := newTestServer(t)
	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions"},
		{http.MethodPost, "/api/sessions"},
		{http.MethodDelete, "/api/sessions/00000000-0000-0000-0000-000000000000"},
	} {
		if rec := s.do(t, tt.method, tt.path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "formateur@demo.fr")

	rec := s.do(t, http.MethodPost, "/api/sessions", token, map[string]string{"traineeName": "  Alice "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	session := decodeBody(t, rec)["session"].(map[string]interface{})
	id := session["id"].(string)
	code := session["code"].(string)
	if session["traineeName"] != "Alice" {
		t.Errorf("Expected trimmed name, got %v", session["traineeName"])
	}

	rec = s.do(t, http.MethodGet, "/api/sessions", token, nil)
	if sessions := decodeBody(t, rec)["sessions"].([]interface{}); len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/values", token, vitals(150, 95, 110, 92))
	if rec.Code != http.StatusOK {
		t.Fatalf("Values: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != true || body["updatedAt"] == nil {
		t.Errorf("Unexpected values body %v", body)
	}

	rec = s.do(t, http.MethodPatch, "/api/sessions/"+id, token, map[string]string{"traineeName": "Bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Rename: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/sensors", token, map[string]bool{"sensorsOn": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Sensors: expected 200, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/public/session-join", "", map[string]string{"code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("Join: expected 200, got %d", rec.Code)
	}
	joined := decodeBody(t, rec)["session"].(map[string]interface{})
	last := joined["lastValues"].(map[string]interface{})
	if last["systolic"] != float64(150) || last["sensorsOn"] != true {
		t.Errorf("Unexpected joined values %v", last)
	}
	if joined["traineeName"] != "Bob" {
		t.Errorf("Expected renamed trainee, got %v", joined["traineeName"])
	}
	if _, ok := joined["trainerId"]; ok {
		t.Error("Join response must not expose the trainer")
	}

	if rec = s.do(t, http.MethodDelete, "/api/sessions/"+id, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Close: expected 204, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodDelete, "/api/sessions/"+id, token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Second close: expected 204, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/values", token, vitals(120, 80, 70, 98))
	if rec.Code != http.StatusConflict {
		t.Errorf("Values after close: expected 409, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/public/session-join", "", map[string]string{"code": code})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Join after close: expected 404, got %d", rec.Code)
	}
}

func TestSessionGuards(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "formateur@demo.fr")
	other := s.token(t, "other@demo.fr")

	rec := s.do(t, http.MethodPost, "/api/sessions", owner, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create without body: expected 201, got %d", rec.Code)
	}
	id := decodeBody(t, rec)["session"].(map[string]interface{})["id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"other trainer values", http.MethodPost, "/api/sessions/" + id + "/values", other, vitals(120, 80, 70, 98), http.StatusForbidden},
		{"other trainer close", http.MethodDelete, "/api/sessions/" + id, other, nil, http.StatusForbidden},
		{"unknown id", http.MethodPost, "/api/sessions/6f1c2c58-52a4-4f25-8f5e-3f2f4a0e7d11/values", owner, vitals(120, 80, 70, 98), http.StatusNotFound},
		{"malformed id", http.MethodDelete, "/api/sessions/not-a-uuid", owner, nil, http.StatusNotFound},
		{"missing vital", http.MethodPost, "/api/sessions/" + id + "/values", owner, map[string]int{"systolic": 120}, http.StatusBadRequest},
		{"fractional vital", http.MethodPost, "/api/sessions/" + id + "/values", owner, `{"systolic":120.5,"diastolic":80,"heartRate":70,"spo2":98}`, http.StatusBadRequest},
		{"missing sensors flag", http.MethodPost, "/api/sessions/" + id + "/sensors", owner, map[string]string{}, http.StatusBadRequest},
		{"bad join code", http.MethodPost, "/api/public/session-join", "", map[string]string{"code": "12"}, http.StatusBadRequest},
		{"unknown join code", http.MethodPost, "/api/public/session-join", "", map[string]string{"code": "000000"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("Expected error body, got %q", rec.Body.String())
			}
		})
	}
}
