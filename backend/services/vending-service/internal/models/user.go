package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBlankName is returned for users without a display name.
	ErrBlankName = errors.New("models: user name is blank")
	// ErrInvalidEmail is returned for an email without a local part and domain.
	ErrInvalidEmail = errors.New("models: user email is invalid")
)

// User is a snack bar customer; admins may additionally operate the kiosk.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the profile fields.
func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrBlankName
	}
	email := strings.TrimSpace(u.Email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}
