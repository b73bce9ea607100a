// Package domain holds typed identifiers shared across packages.
//
// Typed IDs keep a person reference from being confused with a session token or
// a request id at compile time. Every ID is a UUID underneath.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an identifier fails to parse.
var ErrInvalidID = errors.New("invalid id")

// PersonID identifies an account.
type PersonID uuid.UUID

// NewPersonID returns a fresh random PersonID.
func NewPersonID() PersonID {
	return PersonID(uuid.New())
}

// ParsePersonID parses s and rejects empty, malformed and nil UUIDs.
func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PersonID{}, fmt.Errorf("person id: %w", err)
	}
	return PersonID(u), nil
}

func (id PersonID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id PersonID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, ErrInvalidID
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, ErrInvalidID
	}
	return u, nil
}
