package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}

	// HSTS only applies to TLS requests
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security set on plain HTTP: %q", got)
	}
}

func TestRecoverer_LogsPanicWithStackTrace(t *testing.T) {
	// Capture log output
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic message")
	})

	handler := Recoverer(panicHandler)

	req := httptest.NewRequest("GET", "/test-endpoint", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}

	logOutput := buf.String()

	if !strings.Contains(logOutput, "PANIC recovered") {
		t.Errorf("Log missing 'PANIC recovered': %s", logOutput)
	}
	if !strings.Contains(logOutput, "test panic message") {
		t.Errorf("Log missing panic value: %s", logOutput)
	}
	if !strings.Contains(logOutput, "GET /test-endpoint") {
		t.Errorf("Log missing request info: %s", logOutput)
	}
	if !strings.Contains(logOutput, "goroutine") {
		t.Errorf("Log missing stack trace goroutine: %s", logOutput)
	}
}

func TestRecoverer_NoPanic(t *testing.T) {
	normalHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Recoverer(normalHandler)

	req := httptest.NewRequest("GET", "/normal", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
