package domain

import (
	"errors"
	"time"
)

const (
	RoleAdmin    = "ADMIN"
	RoleCourier  = "COURIER"
	RoleCustomer = "CUSTOMER"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidInput       = errors.New("invalid input")
)

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Caller is the identity extracted from a verified token.
type Caller struct {
	ID   string
	Name string
	Role string
}

// ValidRole reports whether role is one the system issues tokens for.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCourier || role == RoleCustomer
}
