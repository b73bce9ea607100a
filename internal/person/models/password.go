package models

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when setting a blank password.
var ErrEmptyPassword = errors.New("password must not be empty")

// SetPassword stores a bcrypt hash of plain.
func (p *Person) SetPassword(plain string) error {
	if plain == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	p.PasswordHash = hash
	return nil
}

// PasswordMatches reports whether plain is the person's password. A person
// without a password never matches.
func (p *Person) PasswordMatches(plain string) bool {
	if len(p.PasswordHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(plain)) == nil
}
