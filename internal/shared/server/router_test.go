package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"matching-backend/internal/analyses"
	"matching-backend/internal/license"
	"matching-backend/internal/services/health"
	"matching-backend/internal/shared/config"
	"matching-backend/internal/usage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	usageSvc := usage.NewService()
	analysisSvc := &analyses.Service{Repo: analyses.NewMemoryRepo(), Usage: usageSvc}
	return NewRouter(RouterDeps{
		Config:          config.Config{},
		Health:          health.NewService(nil),
		AnalysisHandler: analyses.NewHandler(analysisSvc),
		UsageHandler:    usage.NewHandler(usageSvc),
		WebhookHandler:  license.NewWebhookHandler("", nil),
	})
}

func TestHealthEndpointIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "analysis_started_total") {
		t.Fatalf("expected counters in body, got %s", resp.Body.String())
	}
}

func TestAPIRoutesRequireInstallID(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/usage", "/v1/license", "/v1/analysis"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.Code)
		}
	}
}

func TestLicenseEndpointReturnsResolvedPlan(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/license", nil)
	req.Header.Set("X-Install-Id", "1001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"planName":"ai_addon"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestWebhookRouteBypassesLicenseCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/license", strings.NewReader(`{"type":"license.expired"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPollingHasWiderRateBudget(t *testing.T) {
	router := newTestRouter(t)

	// 15 instant requests exceed the DEFAULT burst but must fit POLLING's.
	for i := 0; i < 15; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/analysis/unknown-job", nil)
		req.Header.Set("X-Install-Id", "1001")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code == http.StatusTooManyRequests {
			t.Fatalf("poll %d rate limited", i+1)
		}
	}

	limited := false
	for i := 0; i < 15; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
		req.Header.Set("X-Install-Id", "1001")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected DEFAULT group to throttle a 15-request burst")
	}
}

func TestAddr(t *testing.T) {
	if got := Addr(""); got != ":8080" {
		t.Fatalf("expected :8080, got %s", got)
	}
	if got := Addr("9000"); got != ":9000" {
		t.Fatalf("expected :9000, got %s", got)
	}
	if got := Addr(":7000"); got != ":7000" {
		t.Fatalf("expected :7000, got %s", got)
	}
}
