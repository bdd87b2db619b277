package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsHandler(origins []string) http.Handler {
	return CORS(NewCORSConfig(origins))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_StampsHeadersForAllowedOrigin(t *testing.T) {
	handler := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin to be echoed, got %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials to be allowed, got %q", got)
	}
	allowedHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	for _, header := range []string{"X-Session-ID", "X-Operator-Key"} {
		if !strings.Contains(allowedHeaders, header) {
			t.Errorf("expected %s in allowed headers, got %q", header, allowedHeaders)
		}
	}
}

func TestCORS_UnlistedOriginGetsNoHeaders(t *testing.T) {
	handler := corsHandler([]string{"https://app.example.com"})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for unlisted origin, got %q", got)
	}
}

func TestCORS_NoOriginsConfiguredAllowsNothing(t *testing.T) {
	handler := corsHandler(nil)

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected empty policy to allow nothing, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORS(NewCORSConfig([]string{"https://app.example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", recorder.Code)
	}
	if called {
		t.Error("preflight should not reach the next handler")
	}
}
