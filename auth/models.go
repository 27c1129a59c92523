package auth

import "time"

// Role controls what an operator may do: operators drive transitions,
// managers additionally use the override path, admins manage accounts.
type Role string

const (
	RoleOperator Role = "operator"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Operator is the domain representation of an authenticated account. It
// mirrors the operators table and carries no JSON annotations so it can be
// reused by different presentation layers.
type Operator struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
