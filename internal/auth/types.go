package auth

import "time"

// TokenKind distinguishes the role a credential token plays.
type TokenKind string

const (
	TokenAccess  TokenKind = "Access"
	TokenRefresh TokenKind = "Refresh"
	TokenID      TokenKind = "ID"
	TokenAPIKey  TokenKind = "APIKey"
	TokenSession TokenKind = "Session"
	TokenCustom  TokenKind = "Custom"
)

// Token is one credential value with its lifecycle metadata.
type Token struct {
	Kind           TokenKind
	Value          string
	IssuedAt       time.Time
	ExpiresAt      *time.Time
	Scope          string
	ParentRefresh  *Token
}

// Expired reports whether the token's ExpiresAt, if set, is in the past
// relative to now.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.ExpiresAt == nil {
		return false
	}
	return now.After(*t.ExpiresAt)
}

// Credentials is produced by authenticate, mutated only by refresh, and
// destroyed by revoke.
type Credentials struct {
	Scheme    string
	Config    map[string]interface{}
	Tokens    map[TokenKind]*Token
	ExpiresAt *time.Time
}

// IsValid returns false if the top-level ExpiresAt, or any owned token's
// ExpiresAt, is past.
func (c *Credentials) IsValid(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	for _, tok := range c.Tokens {
		if tok.Expired(now) {
			return false
		}
	}
	return true
}
