package gate

import (
	"context"
	"net/http"

	"webgate/internal/person/models"
	"webgate/internal/session"
)

// State is the per-request arena for the gate: the session, request facts the
// steps need, and the memoized identity. It lives exactly as long as one
// request and is never shared.
type State struct {
	Session *session.Session
	// URL is the request URI (path and query) stored as return_to.
	URL string
	// Path is the request path without query.
	Path string
	// Page is true for HTML page requests, false for assets and API calls.
	Page bool
	// RequestedLocale is the raw "locale" query parameter.
	RequestedLocale string

	person   *models.Person
	resolved bool
	locale   string
}

// NewState captures the request facts the gate needs.
func NewState(r *http.Request, sess *session.Session) *State {
	return &State{
		Session:         sess,
		URL:             r.URL.RequestURI(),
		Path:            r.URL.Path,
		Page:            IsPageRequest(r),
		RequestedLocale: r.URL.Query().Get("locale"),
	}
}

// Locale returns the locale chosen by SelectLocale, or "" before it ran.
func (st *State) Locale() string {
	return st.locale
}

// Identify records p as the acting person for the rest of the request and
// stores the account reference in the session. Used by login.
func (st *State) Identify(p *models.Person) {
	st.Session.Set(session.KeyPersonID, p.ID.String())
	st.person = p
	st.resolved = true
}

// Forget drops the memoized identity so the next resolution starts from the
// session again. Used by logout after the session is destroyed.
func (st *State) Forget() {
	st.person = nil
	st.resolved = false
}

type stateKey struct{}

// WithState attaches st to ctx.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// StateFromContext returns the gate state, or nil outside the gate middleware.
func StateFromContext(ctx context.Context) *State {
	st, _ := ctx.Value(stateKey{}).(*State)
	return st
}
