package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserLoggedIn    EventType = "user_logged_in"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventUserLoggedOut   EventType = "user_logged_out"
	EventRefreshRejected EventType = "refresh_rejected"
	EventSessionRevoked  EventType = "session_revoked"
)

// Event represents an auth lifecycle event emitted by services. Token strings
// are never carried.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TokenIssuedPayload accompanies login and refresh events.
type TokenIssuedPayload struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Rotated          bool      `json:"rotated"`
}

// RefreshRejectedPayload records why a refresh attempt failed. Reason is kept
// server side only.
type RefreshRejectedPayload struct {
	Reason string `json:"reason"`
}

// SessionRevokedPayload names the administrator that forced the logout.
type SessionRevokedPayload struct {
	RevokedBy string `json:"revoked_by"`
}
