package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://forms.example.com/"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/rules", nil)
	req.Header.Set("Origin", "https://forms.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://forms.example.com" {
		t.Fatalf("preflight: status %d headers %v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin got CORS headers: %v", rr.Header())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://any.example.com")
	CORS([]string{"*"})(okHandler).ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("wildcard: %v", rr.Header())
	}
}

func TestSecureAndNoStoreHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecureHeaders(NoStore(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("headers = %v", rr.Header())
	}
}

func TestLocaleMiddleware(t *testing.T) {
	var got string
	h := LocaleMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/?lang=es", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got != "es" {
		t.Fatalf("locale = %q, want es", got)
	}
	if cl := rr.Header().Get("Content-Language"); cl != "es" {
		t.Fatalf("Content-Language = %q, want es", cl)
	}
	if v := rr.Header().Get("Vary"); v != "Accept-Language" {
		t.Fatalf("Vary = %q", v)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
}
