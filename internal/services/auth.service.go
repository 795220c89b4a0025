package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStreamTicketTTL = 5 * time.Minute
	streamTicketIssuer     = "hostwatch"
	streamTicketAudience   = "stream"
	minSecretLength        = 32
)

var ErrInvalidTicket = errors.New("invalid stream ticket")

// StreamClaims binds a websocket subscription to the session user that asked for it
type StreamClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// StreamTicketIssuer signs short-lived JWTs that authorize one websocket
// connection. Session tokens never travel in websocket URLs; tickets do.
type StreamTicketIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStreamTicketIssuer creates an issuer with an explicit key
func NewStreamTicketIssuer(secret []byte, ttl time.Duration) (*StreamTicketIssuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("stream ticket secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	if ttl <= 0 {
		ttl = DefaultStreamTicketTTL
	}
	return &StreamTicketIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// LoadOrCreateSecret reads the signing key from keyFile, generating and
// persisting a random one when the file is missing or empty. An empty
// keyFile means ~/.hostwatch-secret-key (or the temp dir without a home).
func LoadOrCreateSecret(keyFile string, log logrus.FieldLogger) ([]byte, error) {
	if keyFile == "" {
		homeDir, _ := os.UserHomeDir()
		if homeDir == "" {
			homeDir = os.TempDir()
		}
		keyFile = filepath.Join(homeDir, ".hostwatch-secret-key")
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		secret := strings.TrimSpace(string(data))
		if len(secret) >= minSecretLength {
			log.WithField("path", keyFile).Info("loaded persisted stream secret")
			return []byte(secret), nil
		}
		log.WithField("path", keyFile).Warn("persisted stream secret too short, regenerating")
	}

	randomBytes := make([]byte, minSecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate stream secret: %w", err)
	}
	secret := hex.EncodeToString(randomBytes)

	if err := os.WriteFile(keyFile, []byte(secret), 0o600); err != nil {
		log.WithError(err).WithField("path", keyFile).Warn("could not persist stream secret; tickets will not survive a restart")
	} else {
		log.WithField("path", keyFile).Info("generated and persisted stream secret")
	}
	return []byte(secret), nil
}

// Issue signs a ticket for the given session user
func (i *StreamTicketIssuer) Issue(userID int64, username string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := StreamClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    streamTicketIssuer,
			Audience:  jwt.ClaimStrings{streamTicketAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign stream ticket: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses ticket and checks signature, issuer, audience and expiry
func (i *StreamTicketIssuer) Verify(ticket string) (*StreamClaims, error) {
	claims := &StreamClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(streamTicketIssuer),
		jwt.WithAudience(streamTicketAudience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if !token.Valid {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
