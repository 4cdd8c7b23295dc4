package models

import (
	"fmt"
	"net/mail"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// User is an admin account. PasswordHash is only populated by the local backend.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

func (u User) RecordID() string { return u.ID }

func (u User) Validate() error {
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", shared.ErrValidation, u.Email)
	}
	return nil
}
