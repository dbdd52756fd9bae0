package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expensepro/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(log.Discard(), nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/expenses", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id = %q, want req_ prefix", seen)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d", rr.Code)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", m.GetMetrics().TotalRequests)
	}
}

func TestMiddlewareRequestIDFromHeader(t *testing.T) {
	m := NewMiddleware(log.Discard(), nil)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"valid id is kept", "abc-123", true},
		{"invalid id is replaced", "bad id\n", false},
		{"overlong id is replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.header)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if (seen == tt.header) != tt.keep {
				t.Errorf("request id = %q, header %q, keep=%v", seen, tt.header, tt.keep)
			}
		})
	}
}
