package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"marketwatch/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/x", mw, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", mw, func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddlewareBlocksOverBurst(t *testing.T) {
	limiter := ratelimit.New(1, 1, 10, time.Minute)
	r := newTestEngine(RateLimitMiddleware(limiter))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "1.2.3.4:1000"
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	req2.RemoteAddr = "1.2.3.4:1000"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second immediate request status = %d, want 429", w2.Code)
	}
}

func TestAdminMiddlewareRequiresConfiguredKey(t *testing.T) {
	r := newTestEngine(AdminMiddleware("", false))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no admin key configured", w.Code)
	}
}

func TestAdminMiddlewareRejectsWrongKey(t *testing.T) {
	r := newTestEngine(AdminMiddleware("correct-key", true))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Admin-Key", "wrong-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for wrong admin key", w.Code)
	}
}

func TestAdminMiddlewareRejectsPublicAddrWhenNotAllowed(t *testing.T) {
	r := newTestEngine(AdminMiddleware("correct-key", false))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Admin-Key", "correct-key")
	req.RemoteAddr = "8.8.8.8:1000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a public IP when allow_public_admin=false", w.Code)
	}
}

func TestAdminMiddlewareAllowsPrivateAddrWithCorrectKey(t *testing.T) {
	r := newTestEngine(AdminMiddleware("correct-key", false))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Admin-Key", "correct-key")
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for loopback addr with correct key", w.Code)
	}
}

func TestAdminMiddlewareAllowsPublicWhenExplicitlyAllowed(t *testing.T) {
	r := newTestEngine(AdminMiddleware("correct-key", true))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Admin-Key", "correct-key")
	req.RemoteAddr = "8.8.8.8:1000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when allow_public_admin=true", w.Code)
	}
}

func TestBodyLimitMiddlewareRejectsWrongContentType(t *testing.T) {
	r := newTestEngine(BodyLimitMiddleware(1024))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415 for non-JSON content type", w.Code)
	}
}

func TestBodyLimitMiddlewareRejectsOversizedBody(t *testing.T) {
	r := newTestEngine(BodyLimitMiddleware(10))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = 1000
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413 for oversized body", w.Code)
	}
}

func TestBodyLimitMiddlewareSkipsGet(t *testing.T) {
	r := newTestEngine(BodyLimitMiddleware(1))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("GET requests must bypass the body limit check, got status %d", w.Code)
	}
}
