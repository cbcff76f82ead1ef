package routes

import (
	"bytes"
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

	"github.com/CyberwizD/driver-status-relay/internal/models"
	"github.com/CyberwizD/driver-status-relay/internal/repository"
	"github.com/CyberwizD/driver-status-relay/internal/services"
	"github.com/CyberwizD/driver-status-relay/pkg/logger"
	"github.com/CyberwizD/driver-status-relay/pkg/metrics"
)

// MockProvider records every send for inspection.
type MockProvider struct {
	SendFunc func(target models.Target, payload models.NotificationPayload) (models.DeliveryResult, error)
	Sent     []models.Target
	Payloads []models.NotificationPayload
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Send(_ context.Context, target models.Target, payload models.NotificationPayload) (models.DeliveryResult, error) {
	m.Sent = append(m.Sent, target)
	m.Payloads = append(m.Payloads, payload)
	if m.SendFunc != nil {
		return m.SendFunc(target, payload)
	}
	return models.DeliveryResult{Provider: "mock", Status: models.ResultDelivered, MessageID: "projects/x/messages/1"}, nil
}

type testServer struct {
	handler   http.Handler
	directory *repository.MemoryDirectory
	provider  *MockProvider
}

func newTestServer(t *testing.T, routerCfg services.RouterConfig, relayCfg services.RelayConfig) *testServer {
	t.Helper()
	log := logger.Discard()
	dir := repository.NewMemoryDirectory()
	provider := &MockProvider{}
	m := metrics.New()
	relay := services.NewRelay(
		services.NewRouter(routerCfg),
		dir,
		provider,
		services.NewDeliveryRecorder(nil, log),
		m,
		log,
		relayCfg,
	)
	return &testServer{
		handler: NewRouter(Options{
			Relay:   relay,
			Metrics: m,
			Logger:  log,
			Started: time.Now(),
		}),
		directory: dir,
		provider:  provider,
	}
}

func (s *testServer) post(t *testing.T, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %q", rec.Body.String())
	}
	return rec, resp
}

func TestRegisterThenNotifyAdmin(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})

	rec, _ := s.post(t, "/registrar-token", map[string]string{"token": "ABC"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, resp := s.post(t, "/notificar", map[string]string{
		"numeroConductor": "7",
		"hora":            "09:50",
		"estado":          "en espera",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("notify: status %d body %s", rec.Code, rec.Body.String())
	}
	if len(s.provider.Sent) != 1 || s.provider.Sent[0].Token != "ABC" {
		t.Fatalf("expected delivery to ABC, got %+v", s.provider.Sent)
	}
	if body := s.provider.Payloads[0].Body; body != "Conductor 7 en espera a las 09:50" {
		t.Fatalf("unexpected body %q", body)
	}
	if resp.Mensaje == "" || resp.Response == nil || resp.Response.MessageID != "projects/x/messages/1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRegisterAdminTokenValidation(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})

	for _, body := range []interface{}{map[string]string{}, map[string]string{"token": "  "}, "", "{not json"} {
		rec, resp := s.post(t, "/registrar-token", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, rec.Code)
		}
		if resp.Error == "" || resp.Mensaje == "" {
			t.Fatalf("body %v: expected mensaje and error, got %+v", body, resp)
		}
	}
	if _, ok, _ := s.directory.Lookup(context.Background(), models.AdminKey()); ok {
		t.Fatal("directory must stay empty after rejected registrations")
	}
}

func TestRegisterUserAndDriverTokens(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})
	ctx := context.Background()

	tests := []struct {
		name         string
		path         string
		body         map[string]string
		expectStatus int
	}{
		{"user ok", "/registrar-token-usuario", map[string]string{"uid": "u1", "token": "tok-u1"}, http.StatusOK},
		{"user missing uid", "/registrar-token-usuario", map[string]string{"token": "tok"}, http.StatusBadRequest},
		{"user missing token", "/registrar-token-usuario", map[string]string{"uid": "u2"}, http.StatusBadRequest},
		{"driver ok", "/registrar-token-conductor", map[string]string{"numeroConductor": "9", "fcmToken": "tok-9"}, http.StatusOK},
		{"driver with uid", "/registrar-token-conductor", map[string]string{"numeroConductor": "10", "fcmToken": "tok-10", "uid": "drv-10"}, http.StatusOK},
		{"driver missing number", "/registrar-token-conductor", map[string]string{"fcmToken": "tok"}, http.StatusBadRequest},
		{"driver missing token", "/registrar-token-conductor", map[string]string{"numeroConductor": "11"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := s.post(t, tt.path, tt.body)
			if rec.Code != tt.expectStatus {
				t.Fatalf("status %d, want %d (%s)", rec.Code, tt.expectStatus, rec.Body.String())
			}
		})
	}

	checks := map[models.RecipientKey]string{
		models.UserByID("u1"):       "tok-u1",
		models.DriverByNumber("9"):  "tok-9",
		models.DriverByNumber("10"): "tok-10",
		models.DriverByID("drv-10"): "tok-10",
		models.DriverByField("10"):  "tok-10",
	}
	for key, want := range checks {
		rec, ok, err := s.directory.Lookup(ctx, key)
		if err != nil || !ok || rec.Token != want {
			t.Fatalf("lookup %s = %+v ok=%v err=%v, want %q", key, rec, ok, err, want)
		}
	}
	if _, ok, _ := s.directory.Lookup(ctx, models.DriverByNumber("11")); ok {
		t.Fatal("rejected driver registration must not be stored")
	}
}

func TestNotifyAdminErrors(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})

	rec, _ := s.post(t, "/notificar", map[string]string{"hora": "09:50", "estado": "cargado"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing numeroConductor: got %d", rec.Code)
	}

	rec, _ = s.post(t, "/notificar", map[string]string{"numeroConductor": "7", "hora": "09:50", "estado": "cargado"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unregistered admin: got %d", rec.Code)
	}

	rec, _ = s.post(t, "/notificar", map[string]string{"numeroConductor": "7", "hora": "09:50", "estado": "cargado", "uidUsuario": "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unregistered user: got %d", rec.Code)
	}
	if len(s.provider.Sent) != 0 {
		t.Fatalf("no delivery expected, got %+v", s.provider.Sent)
	}

	s.provider.SendFunc = func(models.Target, models.NotificationPayload) (models.DeliveryResult, error) {
		return models.DeliveryResult{}, errors.New("unavailable")
	}
	s.post(t, "/registrar-token", map[string]string{"token": "ABC"})
	rec, resp := s.post(t, "/notificar", map[string]string{"numeroConductor": "7", "hora": "09:50", "estado": "cargado"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("delivery failure: got %d", rec.Code)
	}
	if !strings.Contains(resp.Error, "unavailable") {
		t.Fatalf("expected provider error in body, got %+v", resp)
	}
}

func TestNotifyAdminToUser(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})
	s.post(t, "/registrar-token", map[string]string{"token": "ADMIN"})
	s.post(t, "/registrar-token-usuario", map[string]string{"uid": "u1", "token": "USER"})

	rec, _ := s.post(t, "/notificar", map[string]string{"numeroConductor": "3", "hora": "12:00", "estado": "descargado", "uidUsuario": "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if s.provider.Sent[0].Token != "USER" {
		t.Fatalf("expected delivery to the user token, got %+v", s.provider.Sent)
	}
}

func TestNotifyDriver(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})

	rec, _ := s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "9", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown driver: got %d", rec.Code)
	}
	if len(s.provider.Sent) != 0 {
		t.Fatal("no delivery should be attempted for an unknown driver")
	}

	rec, _ = s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "9", "cuerpo": "B"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing titulo: got %d", rec.Code)
	}

	s.post(t, "/registrar-token-conductor", map[string]string{"numeroConductor": "9", "fcmToken": "tok-9"})
	rec, resp := s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "9", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if s.provider.Sent[0].Token != "tok-9" {
		t.Fatalf("unexpected target %+v", s.provider.Sent[0])
	}
	if p := s.provider.Payloads[0]; p.Title != "T" || p.Body != "B" {
		t.Fatalf("payload not passed through: %+v", p)
	}
	if resp.Response == nil || resp.Response.Status != models.ResultDelivered {
		t.Fatalf("unexpected response %+v", resp)
	}

	s.provider.SendFunc = func(models.Target, models.NotificationPayload) (models.DeliveryResult, error) {
		return models.DeliveryResult{Provider: "mock", Status: models.ResultFailed, Error: "InvalidRegistration"}, nil
	}
	rec, _ = s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "9", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("provider rejection: got %d", rec.Code)
	}
}

func TestNotifyDriverByUID(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{Addressing: services.AddressByUID}, services.RelayConfig{})
	s.post(t, "/registrar-token-conductor", map[string]string{"numeroConductor": "4", "fcmToken": "tok-4", "uid": "drv-4"})

	rec, _ := s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "4", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("uid mode without uid: got %d", rec.Code)
	}
	rec, _ = s.post(t, "/notificar-conductor", map[string]string{"uid": "drv-4", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestNotifyDriverByField(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{Addressing: services.AddressByField}, services.RelayConfig{})
	s.post(t, "/registrar-token-conductor", map[string]string{"numeroConductor": "9", "fcmToken": "tok-9"})

	rec, _ := s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "9", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if len(s.provider.Sent) != 1 || s.provider.Sent[0].Token != "tok-9" {
		t.Fatalf("unexpected sends %+v", s.provider.Sent)
	}

	rec, _ = s.post(t, "/notificar-conductor", map[string]string{"numeroConductor": "8", "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown driver: got %d", rec.Code)
	}
}

func TestNumericDriverNumber(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})
	s.post(t, "/registrar-token", map[string]string{"token": "ADMIN"})
	s.post(t, "/registrar-token-conductor", map[string]interface{}{"numeroConductor": 7, "fcmToken": "tok-7"})

	rec, _ := s.post(t, "/notificar", map[string]interface{}{"numeroConductor": 7, "estado": "cargado", "hora": "08:15"})
	if rec.Code != http.StatusOK {
		t.Fatalf("notify admin: status %d body %s", rec.Code, rec.Body.String())
	}
	if got := s.provider.Payloads[0].Body; got != "Conductor 7 cargado a las 08:15" {
		t.Fatalf("unexpected body %q", got)
	}

	rec, _ = s.post(t, "/notificar-conductor", map[string]interface{}{"numeroConductor": 7, "titulo": "T", "cuerpo": "B"})
	if rec.Code != http.StatusOK {
		t.Fatalf("notify driver: status %d body %s", rec.Code, rec.Body.String())
	}
	if s.provider.Sent[1].Token != "tok-7" {
		t.Fatalf("sent to %+v", s.provider.Sent[1])
	}
}

func TestNotifyLenientPolicy(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 1, 1, 6, 4, 0, 0, time.UTC) }
	s := newTestServer(t, services.RouterConfig{Policy: services.PolicyLenient, Location: time.UTC, Now: clock}, services.RelayConfig{AdminTopic: "admin"})

	rec, _ := s.post(t, "/notificar", map[string]string{"numeroConductor": "21"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if s.provider.Sent[0].Topic != "admin" {
		t.Fatalf("expected topic delivery, got %+v", s.provider.Sent[0])
	}
	if body := s.provider.Payloads[0].Body; body != "El conductor 21 está esperando desde las 06:04" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestLivenessHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, services.RouterConfig{}, services.RelayConfig{})
	s.post(t, "/registrar-token", map[string]string{"token": "ABC"})

	for _, path := range []string{"/", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, rec.Code)
		}
		if rec.Body.Len() == 0 {
			t.Fatalf("GET %s: empty body", path)
		}
	}
}

func TestWellKnownFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "assetlinks.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	h := NewRouter(Options{Relay: nil, Logger: logger.Discard(), WellKnownDir: dir})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/assetlinks.json", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "[]" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
