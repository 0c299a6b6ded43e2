package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestIDGeneratesAndPreserves(t *testing.T) {
	e := echo.New()
	h := RequestID()(func(c echo.Context) error {
		if c.Get("request_id").(string) == "" {
			t.Error("expected request_id to be set")
		}
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	if rec.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("expected abc, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLoggerWritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	h := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusTeapot)
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil)
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"path":"/api/v1/refresh"`) || !strings.Contains(out, `"status":418`) {
		t.Fatalf("unexpected log line %s", out)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	h := Recovery(zerolog.New(&buf))(func(echo.Context) error {
		panic("kaboom")
	})
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}
