package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"webgate/internal/platform/config"
	"webgate/internal/platform/metrics"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/platform/sentinel"
)

const maxTokenLen = 64

// Manager ties a Store to the session cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
	newToken   func() string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics counts session saves.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithTokenGenerator replaces the random token source, for tests.
func WithTokenGenerator(gen func() string) ManagerOption {
	return func(mgr *Manager) {
		if gen != nil {
			mgr.newToken = gen
		}
	}
}

// NewManager builds a Manager from the session config.
func NewManager(store Store, cfg config.SessionConfig, logger *slog.Logger, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		store:      store,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.SecureCookie,
		logger:     logger,
		newToken:   uuid.NewString,
	}
	if mgr.cookieName == "" {
		mgr.cookieName = "_webgate_session"
	}
	if mgr.ttl <= 0 {
		mgr.ttl = 24 * time.Hour
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	return mgr
}

// Load returns the session named by the request cookie, or a fresh unsaved
// session when the cookie is missing, malformed or unknown to the store.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" || len(cookie.Value) > maxTokenLen {
		return newSession(m.newToken()), nil
	}

	values, err := m.store.Load(r.Context(), cookie.Value)
	if errors.Is(err, sentinel.ErrNotFound) {
		return newSession(m.newToken()), nil
	}
	if err != nil {
		return nil, err
	}
	return loadedSession(cookie.Value, values), nil
}

// Save writes s when it changed and refreshes the cookie. A new session with
// no values is never written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	if s.IsNew() && len(s.values) == 0 {
		s.dirty = false
		return nil
	}
	if err := m.store.Save(ctx, s.token, s.values, m.ttl); err != nil {
		m.metrics.ObserveSessionSave("error")
		return fmt.Errorf("persist session: %w", err)
	}
	m.metrics.ObserveSessionSave("ok")
	s.markSaved()
	http.SetCookie(w, m.cookie(s.token, int(m.ttl.Seconds())))
	return nil
}

// Destroy deletes s from the store, expires the cookie and resets s to a
// fresh session under a new token. Values set afterwards land in the new
// session, which is how login rotates the token.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.IsNew() {
		if err := m.store.Delete(ctx, s.token); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
	}
	http.SetCookie(w, m.cookie("", -1))
	*s = *newSession(m.newToken())
	return nil
}

// Middleware loads the session and attaches it to the request context. The
// session is saved once, just before the response header goes out, or after
// the handler returns if it wrote nothing. Store failures on load are fatal to
// the request; failures on save are logged.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := m.Load(r)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to load session",
				"error", err,
				"request_id", request.GetRequestID(ctx),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() {
			if err := m.Save(ctx, w, s); err != nil {
				m.logger.ErrorContext(ctx, "failed to save session",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
			}
		}
		next.ServeHTTP(cw, r.WithContext(WithSession(ctx, s)))
		cw.flush()
	})
}

// commitWriter runs commit once before the first byte of the response.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (cw *commitWriter) flush() {
	if !cw.committed {
		cw.committed = true
		cw.commit()
	}
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.flush()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.flush()
	return cw.ResponseWriter.Write(b)
}

func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string {
	return m.cookieName
}
