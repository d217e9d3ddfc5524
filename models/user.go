package models

import "time"

// ============================================================================
// USER MODEL
// ============================================================================

// User is an identity issued by the identity provider. The API only reads it.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmed   bool       `json:"email_confirmed"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	PasswordHash     string     `json:"-"` // Never expose in JSON
	CreatedAt        time.Time  `json:"created_at"`
}

// UserRef is the short form returned after signup.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Ref returns the short form of u.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email}
}

// ============================================================================
// SESSION
// ============================================================================

// Session is a bearer token bound to exactly one user.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
}

// Expired reports whether the session is past its expiry at now.
// Sessions without an expiry never expire locally.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}
