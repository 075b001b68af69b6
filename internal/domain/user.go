package domain

import "time"

// Role is a closed set of capabilities a user may hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRoles returns every role.
func ValidRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account. PasswordHash and the reset token fields are persisted
// but never rendered; use Public for responses.
type User struct {
	ID                  string     `json:"id" bson:"_id"`
	Name                string     `json:"name" bson:"name" validate:"required,min=4,max=30"`
	Email               string     `json:"email" bson:"email" validate:"required,email"`
	PasswordHash        string     `json:"password_hash" bson:"password_hash"`
	Avatar              Image      `json:"avatar" bson:"avatar"`
	Role                Role       `json:"role" bson:"role"`
	ResetPasswordToken  string     `json:"reset_password_token,omitempty" bson:"reset_password_token,omitempty"`
	ResetPasswordExpiry *time.Time `json:"reset_password_expiry,omitempty" bson:"reset_password_expiry,omitempty"`
	CreatedAt           time.Time  `json:"created_at" bson:"created_at"`
	Version             int64      `json:"version" bson:"version"`
}

// HasRole reports whether u holds role. Roles are flat; admin does not imply user.
func (u *User) HasRole(role Role) bool {
	return u.Role == role
}

// PublicUser is the read model of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    Image     `json:"avatar"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips credentials from u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
