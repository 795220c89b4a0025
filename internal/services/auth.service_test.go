package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostwatch/internal/logging"
)

var testSecret = []byte(strings.Repeat("k", 32))

func TestStreamTicketRoundTrip(t *testing.T) {
	issuer, err := NewStreamTicketIssuer(testSecret, time.Minute)
	if err != nil {
		t.Fatalf("NewStreamTicketIssuer: %v", err)
	}

	ticket, expiresAt, err := issuer.Issue(7, "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until <= 0 || until > time.Minute {
		t.Errorf("expiresAt %v not within a minute", expiresAt)
	}

	claims, err := issuer.Verify(ticket)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 7 || claims.Subject != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestStreamTicketRejections(t *testing.T) {
	issuer, _ := NewStreamTicketIssuer(testSecret, time.Minute)
	other, _ := NewStreamTicketIssuer([]byte(strings.Repeat("x", 32)), time.Minute)

	expired, _ := NewStreamTicketIssuer(testSecret, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }

	foreign, _, _ := other.Issue(1, "alice")
	stale, _, _ := expired.Issue(1, "alice")

	tests := []struct {
		name   string
		ticket string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"wrong key", foreign},
		{"expired", stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.ticket); !errors.Is(err, ErrInvalidTicket) {
				t.Errorf("err = %v, want ErrInvalidTicket", err)
			}
		})
	}
}

func TestNewStreamTicketIssuerShortSecret(t *testing.T) {
	if _, err := NewStreamTicketIssuer([]byte("short"), time.Minute); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestLoadOrCreateSecretPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")

	first, err := LoadOrCreateSecret(path, logging.Discard())
	if err != nil {
		t.Fatalf("LoadOrCreateSecret: %v", err)
	}
	if len(first) < minSecretLength {
		t.Fatalf("secret length = %d", len(first))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("secret not persisted: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secret file mode = %v, want 0600", perm)
	}

	second, err := LoadOrCreateSecret(path, logging.Discard())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if string(first) != string(second) {
		t.Error("reloaded secret differs")
	}
}
