package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParsePersonID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParsePersonID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePersonID("")
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePersonID("not-a-uuid")
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePersonID(uuid.Nil.String())
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePersonID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PersonID(validUUID), id)
		assert.False(t, id.IsNil())
	})
}

// TestParsePersonID_SessionValues covers values that can end up in a
// tampered or stale session cookie.
func TestParsePersonID_SessionValues(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE people;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Legacy integer id", "42", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePersonID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidID)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPersonID_RoundTrip(t *testing.T) {
	id := NewPersonID()
	parsed, err := ParsePersonID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.True(t, PersonID{}.IsNil())
}
