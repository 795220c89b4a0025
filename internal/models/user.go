package models

import "time"

// User is a registered account. The plaintext password is never kept.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a time-bounded proof of authentication tied to a random token
type Session struct {
	Token    string    `json:"-"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	IssuedAt time.Time `json:"issued_at"`
	Expiry   time.Time `json:"expiry"`
}

// ExpiredAt reports whether the session is past its expiry at t.
// A session is still valid at exactly its expiry instant.
func (s Session) ExpiredAt(t time.Time) bool {
	return t.After(s.Expiry)
}
