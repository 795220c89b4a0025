package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hostwatch/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	// sessionTokenBytes gives 256 bits of entropy, 64 hex characters
	sessionTokenBytes = 32
)

var (
	ErrAlreadyExists      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyCredentials   = errors.New("username and password required")
)

// SessionOptions configures a SessionAuthenticator. Zero values take defaults.
type SessionOptions struct {
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
}

// SessionAuthenticator owns user accounts and the bearer sessions issued to
// them. A single mutex covers both maps; bcrypt work happens outside it.
type SessionAuthenticator struct {
	mu       sync.Mutex
	users    map[string]*models.User
	sessions map[string]*models.Session
	nextID   int64

	dummyOnce sync.Once
	dummyHash []byte

	ttl  time.Duration
	cost int
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewSessionAuthenticator creates an empty authenticator
func NewSessionAuthenticator(opts SessionOptions, log logrus.FieldLogger) *SessionAuthenticator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionAuthenticator{
		users:    make(map[string]*models.User),
		sessions: make(map[string]*models.Session),
		ttl:      opts.TTL,
		cost:     opts.BcryptCost,
		now:      opts.Now,
		log:      log,
	}
}

// TTL returns the lifetime given to new sessions
func (a *SessionAuthenticator) TTL() time.Duration {
	return a.ttl
}

// Register creates a user and returns its id
func (a *SessionAuthenticator) Register(username, password string) (int64, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return 0, ErrEmptyCredentials
	}

	// Repeated under the lock after hashing.
	a.mu.Lock()
	_, taken := a.users[username]
	a.mu.Unlock()
	if taken {
		return 0, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users[username]; exists {
		return 0, ErrAlreadyExists
	}
	a.nextID++
	a.users[username] = &models.User{
		ID:           a.nextID,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    a.now(),
	}

	a.log.WithFields(logrus.Fields{"user_id": a.nextID, "username": username}).Info("user registered")
	return a.nextID, nil
}

// Login checks the password and issues a new session token. Unknown users
// and wrong passwords produce the same error.
func (a *SessionAuthenticator) Login(username, password string) (string, error) {
	username = normalizeUsername(username)

	a.mu.Lock()
	user, ok := a.users[username]
	a.mu.Unlock()

	if !ok {
		// Same bcrypt cost as a real comparison.
		a.compareDummy(password)
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	issued := a.now()
	session := &models.Session{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		IssuedAt: issued,
		Expiry:   issued.Add(a.ttl),
	}

	a.mu.Lock()
	a.sessions[token] = session
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"session": TokenFingerprint(token),
	}).Info("session issued")
	return token, nil
}

// Validate reports whether token names a live session. Expired sessions are
// deleted on the way out.
func (a *SessionAuthenticator) Validate(token string) bool {
	_, ok := a.Session(token)
	return ok
}

// Session returns the live session for token
func (a *SessionAuthenticator) Session(token string) (models.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[token]
	if !ok {
		return models.Session{}, false
	}
	if s.ExpiredAt(a.now()) {
		delete(a.sessions, token)
		return models.Session{}, false
	}
	return *s, true
}

// SweepExpired deletes every expired session and returns how many went
func (a *SessionAuthenticator) SweepExpired() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	removed := 0
	for token, s := range a.sessions {
		if s.ExpiredAt(now) {
			delete(a.sessions, token)
			removed++
		}
	}
	return removed
}

// UserIDFor looks up a user's id by name
func (a *SessionAuthenticator) UserIDFor(username string) (int64, bool) {
	username = normalizeUsername(username)

	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.users[username]
	if !ok {
		return 0, false
	}
	return u.ID, true
}

// SessionCount returns the number of sessions held, expired or not
func (a *SessionAuthenticator) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// RunSweeper calls SweepExpired every interval until ctx is done
func (a *SessionAuthenticator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.SweepExpired(); n > 0 {
				a.log.WithField("removed", n).Debug("expired sessions swept")
			}
		}
	}
}

func (a *SessionAuthenticator) compareDummy(password string) {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hostwatch-dummy-password"), a.cost)
	})
	_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
}

// normalizeUsername maps a username to the key it is stored under
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokenFingerprint returns a short prefix that is safe to log
func TokenFingerprint(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
