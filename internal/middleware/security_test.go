package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hostwatch/internal/logging"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testSecurityLogger() *SecurityLogger {
	return NewSecurityLogger(logging.Discard())
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(SecurityHeadersMiddleware())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"no origin", nil, "", ""},
		{"open list", nil, "http://a.example", "http://a.example"},
		{"listed", []string{"https://ui.example/"}, "https://ui.example", "https://ui.example"},
		{"bare host", []string{"ui.example"}, "http://ui.example", "http://ui.example"},
		{"not listed", []string{"https://ui.example"}, "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CORSMiddleware(tt.allowed))
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORSMiddleware(nil))
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://a.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimitMiddleware(NewRateLimiter(1, 2), testSecurityLogger()))

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", w.Code)
	}
}

func TestIPWhitelist(t *testing.T) {
	wl := NewIPWhitelist([]string{"10.0.0.5", " "})
	tests := map[string]bool{
		"10.0.0.5":       true,
		"10.0.0.5:8080":  true,
		"127.0.0.1":      true,
		"::1":            true,
		"10.0.0.6":       false,
		"203.0.113.9:80": false,
	}
	for ip, want := range tests {
		if got := wl.IsAllowed(ip); got != want {
			t.Errorf("IsAllowed(%q) = %v, want %v", ip, got, want)
		}
	}

	if !NewIPWhitelist(nil).IsAllowed("203.0.113.9") {
		t.Error("empty whitelist should allow everyone")
	}

	r := newEngine(IPWhitelistMiddleware(wl, testSecurityLogger()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
