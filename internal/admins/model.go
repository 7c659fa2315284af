package admins

import (
	"time"

	"smarthub-backend/internal/models"
)

const (
	MaxLoginAttempts = 5
	LockDuration     = 30 * time.Minute
)

type Admin struct {
	ID            string     `bson:"_id,omitempty" json:"id"`
	Email         string     `bson:"email" json:"email"`
	PasswordHash  string     `bson:"password" json:"-"`
	Name          string     `bson:"name" json:"name"`
	Role          string     `bson:"role" json:"role"`
	IsActive      bool       `bson:"isActive" json:"isActive"`
	LoginAttempts int        `bson:"loginAttempts" json:"-"`
	LockUntil     *time.Time `bson:"lockUntil,omitempty" json:"-"`
	LastLogin     *time.Time `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (a Admin) lockedAt(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetupRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=admin editor"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     Admin     `json:"admin"`
}

func normalizeRole(role string) string {
	if role == models.RoleEditor {
		return models.RoleEditor
	}
	return models.RoleAdmin
}
