package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JeanGrijp/csrfchain/config"
	"github.com/JeanGrijp/csrfchain/csrf"
	"github.com/JeanGrijp/csrfchain/stages"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := csrf.New(csrf.Config{}, csrf.WithLogger(logger))
	if err != nil {
		t.Fatalf("csrf.New: %v", err)
	}
	cfg := config.Config{
		Server:    config.Server{HealthPath: "/healthz"},
		Telemetry: config.Telemetry{MetricsPath: "/metrics"},
	}
	return newHandler(cfg, p, logger, prometheus.NewRegistry())
}

func issuedCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrf.DefaultCookieName {
			if found != nil {
				t.Fatalf("more than one %s cookie", c.Name)
			}
			found = c
		}
	}
	if found == nil {
		t.Fatalf("no %s cookie", csrf.DefaultCookieName)
	}
	return found
}

var hiddenToken = regexp.MustCompile(`name="__token" value="([0-9a-f]{64})"`)

func TestFormRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	cookie := issuedCookie(t, rec)
	m := hiddenToken.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatalf("form has no token field:\n%s", rec.Body.String())
	}
	if m[1] != cookie.Value {
		t.Fatalf("form token %q differs from cookie %q", m[1], cookie.Value)
	}
	if rec.Header().Get(stages.HeaderRequestID) == "" {
		t.Error("missing request id")
	}

	form := url.Values{"__token": {m[1]}, "amount": {"10"}}
	req := httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /transfer = %d %q", rec.Code, rec.Body.String())
	}
	if issuedCookie(t, rec).Value == cookie.Value {
		t.Error("token was not rotated")
	}
}

func TestRejectionsAreCounted(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	req.AddCookie(&http.Cookie{Name: csrf.DefaultCookieName, Value: strings.Repeat("a", 64)})
	req.Header.Set("X-Csrf-Token", strings.Repeat("b", 64))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != csrf.StatusTokenInvalid {
		t.Fatalf("expected 419, got %d", rec.Code)
	}
	if rec.Body.String() != "CSRF token is invalid" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get(stages.HeaderRequestID) == "" {
		t.Error("missing request id on rejection")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"csrfchain_csrf_rejections_total 1",
		`csrfchain_http_requests_total{method="POST",status="419"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("metrics endpoint should not rotate the token")
	}
}

func TestHealthzSkipsCSRF(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("health check should not get a token")
	}
}

func TestTokenEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))

	if rec.Body.String() != issuedCookie(t, rec).Value {
		t.Fatalf("token body does not match cookie")
	}
}

func TestUnknownRouteStillRotates(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	issuedCookie(t, rec)
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestFormRenderErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p, err := csrf.New(csrf.Config{}, csrf.WithLogger(logger))
	if err != nil {
		t.Fatalf("csrf.New: %v", err)
	}

	newRouter(p, logger).ServeHTTP(brokenWriter{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(logs.String(), "render form") || !strings.Contains(logs.String(), "connection reset") {
		t.Fatalf("expected render error in log, got %q", logs.String())
	}
}

func TestMalformedQueryReachesRouter(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?a=%zz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	issuedCookie(t, rec)
}
