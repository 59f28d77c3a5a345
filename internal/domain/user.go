package domain

// Role is the caller role asserted by the auth collaborator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal may bypass ownership checks.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanRead reports whether the principal may read an upload owned by ownerID.
func (p Principal) CanRead(ownerID string) bool {
	return p.IsAdmin() || (p.UserID != "" && p.UserID == ownerID)
}
