package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDCapture mounts the middleware in front of a handler that records
// what RequestIDKey held when the handler ran.
func requestIDCapture() (*gin.Engine, *string) {
	var seen string
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/api/v1/context", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

// ---------------------------------------------------------------------------
// RequestIDMiddleware
// ---------------------------------------------------------------------------

func TestRequestIDMiddleware_MintsUUIDWhenAbsent(t *testing.T) {
	r, seen := requestIDCapture()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/context", nil))

	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("no X-Request-ID on the response")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", id, err)
	}
	if *seen != id {
		t.Errorf("handler saw id %q but the response carries %q", *seen, id)
	}
}

func TestRequestIDMiddleware_ReusesInboundID(t *testing.T) {
	const upstream = "edge-proxy-7f3a"
	r, seen := requestIDCapture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/context", nil)
	req.Header.Set(RequestIDHeader, upstream)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != upstream {
		t.Errorf("response id = %q, want the inbound %q", got, upstream)
	}
	if *seen != upstream {
		t.Errorf("handler saw %q, want the inbound %q", *seen, upstream)
	}
}

func TestRequestIDMiddleware_IDsAreUnique(t *testing.T) {
	r, _ := requestIDCapture()

	ids := make(map[string]bool, 20)
	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/context", nil))
		id := w.Header().Get(RequestIDHeader)
		if ids[id] {
			t.Fatalf("request id %q repeated on iteration %d", id, i)
		}
		ids[id] = true
	}
}
