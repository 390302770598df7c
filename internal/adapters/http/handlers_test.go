package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/license-service/internal/adapters/redisstore"
	"github.com/viralforge/license-service/internal/application"
	"github.com/viralforge/license-service/internal/domain"
)

const testAdminToken = "test-admin-token"

type nopAudit struct{}

func (nopAudit) Record(domain.AuditEntry) {}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client, 2*time.Second, 20)
	svc := application.NewService(application.Dependencies{
		Registry:    store,
		Bindings:    store,
		Activations: store,
		Audit:       nopAudit{},
	})
	handler := NewHandler(svc, testAdminToken, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, mr
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return res.StatusCode, env
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": testAdminToken}
}

func createTestLicense(t *testing.T, srv *httptest.Server, maxActivations int) string {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, srv.URL+"/license/v1/admin/licenses",
		fmt.Sprintf(`{"max_activations":%d,"validity_days":30}`, maxActivations), adminHeaders())
	if status != http.StatusCreated {
		t.Fatalf("create license returned %d (%s)", status, env.Code)
	}
	var created application.CreateLicenseResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.LicenseKey == "" {
		t.Fatalf("create returned empty key")
	}
	return created.LicenseKey
}

func TestActivateValidateAndLimitOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	key := createTestLicense(t, srv, 1)

	activateBody := fmt.Sprintf(`{"license_key":%q,"device_id":"D1"}`, key)
	status, env := doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate", activateBody, nil)
	if status != http.StatusOK {
		t.Fatalf("activate returned %d (%s)", status, env.Code)
	}
	var res application.ActivateResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode activate response: %v", err)
	}
	if res.Result != application.ResultActivated {
		t.Fatalf("expected activated, got %q", res.Result)
	}
	if res.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expiry should be in the future: %v", res.ExpiresAt)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate", activateBody, nil)
	if status != http.StatusOK {
		t.Fatalf("repeat activate returned %d (%s)", status, env.Code)
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode activate response: %v", err)
	}
	if res.Result != application.ResultValidated {
		t.Fatalf("expected validated, got %q", res.Result)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate",
		fmt.Sprintf(`{"license_key":%q,"device_id":"D2"}`, key), nil)
	if status != http.StatusConflict || env.Code != "ACTIVATION_LIMIT_REACHED" {
		t.Fatalf("expected 409 ACTIVATION_LIMIT_REACHED, got %d %s", status, env.Code)
	}
}

func TestCheckOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	key := createTestLicense(t, srv, 2)

	// Check before activation is rejected even though the license is valid.
	status, env := doJSON(t, http.MethodPost, srv.URL+"/license/v1/check",
		fmt.Sprintf(`{"license_key":%q,"device_id":"D1"}`, key), nil)
	if status != http.StatusPreconditionRequired || env.Code != "DEVICE_NOT_BOUND" {
		t.Fatalf("expected 428 DEVICE_NOT_BOUND, got %d %s", status, env.Code)
	}

	if status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate",
		fmt.Sprintf(`{"license_key":%q,"device_id":"D1"}`, key), nil); status != http.StatusOK {
		t.Fatalf("activate returned %d (%s)", status, env.Code)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/check",
		fmt.Sprintf(`{"license_key":%q,"device_id":"D1"}`, key), nil)
	if status != http.StatusOK {
		t.Fatalf("check returned %d (%s)", status, env.Code)
	}
	var res application.CheckResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode check response: %v", err)
	}
	if res.Result != application.ResultValid {
		t.Fatalf("expected valid, got %q", res.Result)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate",
		`{"license_key":"LIC-NO-SUCH-KEY-0001","device_id":"D1"}`, nil)
	if status != http.StatusNotFound || env.Code != "INVALID_LICENSE" {
		t.Fatalf("expected 404 INVALID_LICENSE, got %d %s", status, env.Code)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate", `{"license_key":`, nil)
	if status != http.StatusBadRequest || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 400 VALIDATION_ERROR, got %d %s", status, env.Code)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate",
		`{"license_key":"K","device_id":"D1","unexpected":true}`, nil)
	if status != http.StatusBadRequest || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("unknown fields should be rejected, got %d %s", status, env.Code)
	}
}

func TestAdminSurface(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	// No token, wrong token.
	status, env := doJSON(t, http.MethodGet, srv.URL+"/license/v1/admin/licenses", "", nil)
	if status != http.StatusUnauthorized || env.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED, got %d %s", status, env.Code)
	}
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/license/v1/admin/licenses", "",
		map[string]string{"X-Admin-Token": "wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", status)
	}

	key := createTestLicense(t, srv, 3)

	status, env = doJSON(t, http.MethodGet, srv.URL+"/license/v1/admin/licenses", "", adminHeaders())
	if status != http.StatusOK {
		t.Fatalf("list returned %d (%s)", status, env.Code)
	}
	var listing struct {
		Licenses []application.LicenseItem `json:"licenses"`
		Count    int                       `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Count != 1 || len(listing.Licenses) != 1 || listing.Licenses[0].LicenseKey != key {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	status, env = doJSON(t, http.MethodDelete, srv.URL+"/license/v1/admin/licenses/"+key, "", adminHeaders())
	if status != http.StatusOK {
		t.Fatalf("deactivate returned %d (%s)", status, env.Code)
	}
	status, env = doJSON(t, http.MethodPost, srv.URL+"/license/v1/activate",
		fmt.Sprintf(`{"license_key":%q,"device_id":"D1"}`, key), nil)
	if status != http.StatusForbidden || env.Code != "LICENSE_DEACTIVATED" {
		t.Fatalf("expected 403 LICENSE_DEACTIVATED, got %d %s", status, env.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	srv, mr := newTestServer(t)

	status, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz returned %d", status)
	}
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("readyz returned %d", status)
	}

	mr.Close()
	status, env := doJSON(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	if status != http.StatusServiceUnavailable || env.Code != "NOT_READY" {
		t.Fatalf("expected 503 NOT_READY after store loss, got %d %s", status, env.Code)
	}
}
