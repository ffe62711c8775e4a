package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer may read renderer state.
	RoleViewer Role = "viewer"

	// RoleAdmin may change the identification policy and custom profiles.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleAdmin}

// IsValidRole returns true if the role may be placed in a token.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Auth errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrEmptySecret  = errors.New("signing secret is empty")
	ErrForbidden    = errors.New("insufficient permissions")
)
