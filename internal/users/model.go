// Package users manages clinic accounts and password login.
package users

import (
	"errors"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("only admins can manage accounts")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrMissingFields      = errors.New("full name and email are required")
	ErrSelfDelete         = errors.New("admins cannot delete their own account")
)

// User is a clinic account.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         auth.Role `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the identity carried in the user's tokens.
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Role: u.Role, Name: u.FullName, Email: u.Email}
}
