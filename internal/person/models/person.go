package models

import (
	"time"

	id "webgate/pkg/domain"
)

// Person is the account behind a session. The gate reads Active, Admin, Email and
// Language, and writes LastLoggedInAt on page requests.
type Person struct {
	ID             id.PersonID
	Name           string
	Email          string
	PasswordHash   []byte
	Language       string
	Active         bool
	Admin          bool
	LastLoggedInAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a copy so stores never hand out their internal pointer.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	c := *p
	if p.PasswordHash != nil {
		c.PasswordHash = append([]byte(nil), p.PasswordHash...)
	}
	return &c
}
