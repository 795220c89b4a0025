package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hostwatch/internal/logging"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			c.Request.Header.Set("Authorization", tt.header)
		}
		token, ok := BearerToken(c)
		if token != tt.token || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q/%v, want %q/%v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestRequireSession(t *testing.T) {
	auth := services.NewSessionAuthenticator(services.SessionOptions{BcryptCost: bcrypt.MinCost}, logging.Discard())
	if _, err := auth.Register("alice", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := auth.Login("alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	r := gin.New()
	r.GET("/private", RequireSession(auth, testSecurityLogger()), func(c *gin.Context) {
		s, ok := CurrentSession(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, s.Username)
	})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer garbage", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code == http.StatusOK && w.Body.String() != "alice" {
				t.Errorf("body = %q, want alice", w.Body.String())
			}
		})
	}
}
