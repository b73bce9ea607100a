// Package session implements cookie-keyed server-side sessions: a string map
// per client, loaded once per request and written back at most once.
package session

import (
	"context"
	"encoding/json"
	"maps"
)

// Well-known keys.
const (
	KeyPersonID = "person_id"
	KeyReturnTo = "return_to"
	KeyLocale   = "locale"
	keyFlash    = "flash"
)

// Flash kinds.
const (
	FlashNotice = "notice"
	FlashError  = "error"
)

// Flash is a notice that survives exactly one subsequent render.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is a single client's values. It is owned by one request and is not
// safe for concurrent use.
type Session struct {
	token  string
	values map[string]string
	isNew  bool
	dirty  bool
}

func newSession(token string) *Session {
	return &Session{token: token, values: make(map[string]string), isNew: true}
}

func loadedSession(token string, values map[string]string) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{token: token, values: values}
}

// Token is the opaque identifier carried in the cookie.
func (s *Session) Token() string { return s.token }

// IsNew reports whether the session has never been persisted.
func (s *Session) IsNew() bool { return s.isNew }

// Dirty reports whether values changed since load or last save.
func (s *Session) Dirty() bool { return s.dirty }

// Get returns the value for key or "".
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Set stores value under key. Setting the current value is not a change.
func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Pop returns the value for key and removes it.
func (s *Session) Pop(key string) string {
	v := s.values[key]
	s.Delete(key)
	return v
}

// Clear removes every key.
func (s *Session) Clear() {
	if len(s.values) == 0 {
		return
	}
	s.values = make(map[string]string)
	s.dirty = true
}

// Values returns a copy of the stored values.
func (s *Session) Values() map[string]string {
	return maps.Clone(s.values)
}

// AddFlash sets the message for kind, replacing any earlier message of the
// same kind.
func (s *Session) AddFlash(kind, message string) {
	flashes := s.PeekFlashes()
	replaced := false
	for i := range flashes {
		if flashes[i].Kind == kind {
			flashes[i].Message = message
			replaced = true
		}
	}
	if !replaced {
		flashes = append(flashes, Flash{Kind: kind, Message: message})
	}
	encoded, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	s.Set(keyFlash, string(encoded))
}

// PeekFlashes returns pending flashes without consuming them.
func (s *Session) PeekFlashes() []Flash {
	raw := s.values[keyFlash]
	if raw == "" {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal([]byte(raw), &flashes); err != nil {
		return nil
	}
	return flashes
}

// Flashes returns and consumes pending flashes.
func (s *Session) Flashes() []Flash {
	flashes := s.PeekFlashes()
	s.Delete(keyFlash)
	return flashes
}

func (s *Session) markSaved() {
	s.isNew = false
	s.dirty = false
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request session, or nil outside the session middleware.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// NewForTest returns an unsaved session with the given values, for tests in
// other packages that exercise code reading the session.
func NewForTest(values map[string]string) *Session {
	s := newSession("test-token")
	for k, v := range values {
		s.values[k] = v
	}
	return s
}
