package domain

import "time"

// Role names carried in tokens. Any other string is accepted as an opaque role.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// AccountIdentity is the immutable snapshot of an account used to mint tokens
// and attached to authenticated requests.
type AccountIdentity struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the identity carries role.
func (a *AccountIdentity) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User is the user store row.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns a copy of the user's public identity.
func (u *User) Identity() *AccountIdentity {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return &AccountIdentity{ID: u.ID, Email: u.Email, Roles: roles}
}
