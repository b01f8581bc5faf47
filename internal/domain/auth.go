package domain

import "time"

// TokenKind differentiates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshTokenRecord is the stored refresh token of a subject. There is at most
// one record per subject.
type RefreshTokenRecord struct {
	Subject  string    `json:"subject"`
	Token    string    `json:"token"`
	StoredAt time.Time `json:"stored_at"`
}
