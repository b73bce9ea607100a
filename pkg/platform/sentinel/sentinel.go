package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so callers can branch with errors.Is without knowing the backend.
//
// - ErrNotFound: record or session does not exist in the store
// - ErrConflict: write violates a uniqueness constraint (duplicate email)
// - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
