package domain

// Role of a user account. Fixed at creation, no promotion flow.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the domain entity for a user account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	IsActive     bool
}

// Principal is the authenticated actor behind a request: identity plus the
// role as freshly read from the credential store on this request.
type Principal struct {
	ID       int64
	Username string
	Role     Role
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
