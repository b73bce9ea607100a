// Package web is the page-serving HTTP surface: the chi router, the global
// middleware stack and a handful of pages that exercise the request gate.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"webgate/internal/gate"
	"webgate/internal/i18n"
	"webgate/internal/person/models"
	"webgate/internal/platform/config"
	"webgate/internal/platform/metrics"
	"webgate/internal/session"
	"webgate/internal/throttle"
	id "webgate/pkg/domain"
	emailaddr "webgate/pkg/email"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/platform/sentinel"
	"webgate/pkg/requestcontext"
)

// PersonStore is the person persistence the pages need.
type PersonStore interface {
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindByEmail(ctx context.Context, email string) (*models.Person, error)
	Save(ctx context.Context, person *models.Person) error
	Count(ctx context.Context) (int, error)
}

// Translator renders page text.
type Translator interface {
	T(locale, key string, args ...any) string
	Match(raw string) (string, bool)
	Default() string
}

// Handler serves the pages.
type Handler struct {
	gate     *gate.Gate
	sessions *session.Manager
	people   PersonStore
	tr       Translator
	cfg      config.GateConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	limiter  throttle.Limiter
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics counts login attempts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLoginLimiter throttles login submissions per client IP.
func WithLoginLimiter(l throttle.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// New creates a page Handler.
func New(g *gate.Gate, sessions *session.Manager, people PersonStore, tr Translator, cfg config.GateConfig, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		gate:     g,
		sessions: sessions,
		people:   people,
		tr:       tr,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register registers the page routes. The caller has already installed the
// session middleware and the default gate chain.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleHome)
	r.Get(h.cfg.LoginURL, h.handleLoginForm)
	r.Post(h.cfg.LoginURL, h.handleLogin)
	r.Get(h.cfg.LogoutURL, h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireLoginMiddleware())
		r.Get("/people/{id}/edit", h.handleEditProfile)
		r.Post("/people/{id}/edit", h.handleUpdateProfile)
	})
	r.With(h.gate.RequireAdminMiddleware()).Get("/admin", h.handleAdmin)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	p, ok := h.currentPerson(w, r)
	if !ok {
		return
	}
	title := h.t(r, i18n.KeyWelcomeAnonymous)
	if p != nil {
		name := p.Name
		if name == "" {
			name = emailaddr.DisplayName(p.Email)
		}
		title = h.t(r, i18n.KeyWelcome, name)
	}
	h.render(w, r, http.StatusOK, pageData{View: "home", Title: title, Person: p})
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.currentPerson(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, pageData{View: "login", Title: h.t(r, i18n.KeyLoginPage), Person: p})
}

// handleLogin checks the credentials, rotates the session token and sends the
// person back to where RequireLogin intercepted them.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	st := gate.StateFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "invalid login form",
			"request_id", requestID,
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	throttleKey := "login:" + requestcontext.ClientIP(ctx)
	if !h.allowLogin(w, r, throttleKey, email) {
		return
	}

	p, err := h.people.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		h.logger.ErrorContext(ctx, "failed to look up person for login",
			"request_id", requestID,
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if p == nil || !p.PasswordMatches(password) || !gate.IsAuthorized(p) {
		h.logger.InfoContext(ctx, "login rejected", "request_id", requestID)
		h.metrics.ObserveLoginAttempt("rejected")
		st.Session.AddFlash(session.FlashError, h.t(r, i18n.KeyInvalidLogin))
		h.render(w, r, http.StatusUnauthorized, pageData{View: "login", Title: h.t(r, i18n.KeyLoginPage), Email: email})
		return
	}

	h.metrics.ObserveLoginAttempt("ok")
	h.resetLoginThrottle(r, throttleKey)

	target := gate.RedirectBackOrDefault(st, h.cfg.HomeURL)
	if err := h.sessions.Destroy(ctx, w, st.Session); err != nil {
		h.logger.ErrorContext(ctx, "failed to rotate session on login",
			"request_id", requestID,
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	st.Identify(p)

	locale, _ := h.tr.Match(p.Language)
	st.Session.AddFlash(session.FlashNotice, h.tr.T(locale, i18n.KeyLoggedIn))
	h.logger.InfoContext(ctx, "person logged in",
		"request_id", requestID,
		"person_id", p.ID.String(),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := gate.StateFromContext(ctx)

	if err := h.sessions.Destroy(ctx, w, st.Session); err != nil {
		h.logger.ErrorContext(ctx, "failed to destroy session on logout",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	st.Forget()
	st.Session.AddFlash(session.FlashNotice, h.t(r, i18n.KeyLoggedOut))
	http.Redirect(w, r, h.cfg.HomeURL, http.StatusFound)
}

func (h *Handler) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	current, subject, ok := h.profileSubject(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, pageData{
		View:    "edit",
		Title:   h.t(r, i18n.KeyEditProfile),
		Person:  current,
		Subject: subject,
	})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	current, subject, ok := h.profileSubject(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	updated := subject.Clone()
	if v := strings.TrimSpace(r.PostFormValue("name")); v != "" {
		updated.Name = v
	}
	if v := strings.TrimSpace(r.PostFormValue("email")); v != "" {
		updated.Email = v
	}
	if v := strings.TrimSpace(r.PostFormValue("language")); v != "" {
		locale, matched := h.tr.Match(v)
		if !matched {
			st := gate.StateFromContext(ctx)
			st.Session.AddFlash(session.FlashError, h.t(r, i18n.KeyInvalidLanguage))
			h.render(w, r, http.StatusUnprocessableEntity, pageData{View: "edit", Title: h.t(r, i18n.KeyEditProfile), Person: current, Subject: subject})
			return
		}
		updated.Language = locale
	}

	err := h.people.Save(ctx, updated)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		st := gate.StateFromContext(ctx)
		st.Session.AddFlash(session.FlashError, h.t(r, i18n.KeyEmailTaken))
		h.render(w, r, http.StatusConflict, pageData{View: "edit", Title: h.t(r, i18n.KeyEditProfile), Person: current, Subject: subject})
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to update profile",
			"request_id", requestID,
			"person_id", subject.ID.String(),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	locale := requestcontext.Locale(ctx)
	if updated.ID == current.ID {
		locale, _ = h.tr.Match(updated.Language)
	}
	st := gate.StateFromContext(ctx)
	st.Session.AddFlash(session.FlashNotice, h.tr.T(locale, i18n.KeyProfileUpdated))
	http.Redirect(w, r, gate.EditPersonPath(updated.ID), http.StatusFound)
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.currentPerson(w, r)
	if !ok {
		return
	}
	count, err := h.people.Count(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count people",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, pageData{
		View:        "admin",
		Title:       h.t(r, i18n.KeyAdminDashboard),
		Person:      p,
		PeopleCount: count,
	})
}

// allowLogin consults the login limiter, answering 429 itself when the client
// is over the limit. Limiter failures let the attempt through.
func (h *Handler) allowLogin(w http.ResponseWriter, r *http.Request, key, email string) bool {
	if h.limiter == nil {
		return true
	}
	ctx := r.Context()
	res, err := h.limiter.Allow(ctx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "login throttle unavailable",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		return true
	}
	if res.Allowed {
		return true
	}

	h.logger.WarnContext(ctx, "login throttled",
		"request_id", request.GetRequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
	)
	h.metrics.ObserveLoginAttempt("throttled")
	gate.StateFromContext(ctx).Session.AddFlash(session.FlashError, h.t(r, i18n.KeyTooManyAttempts))
	w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Round(time.Second).Seconds())))
	h.render(w, r, http.StatusTooManyRequests, pageData{View: "login", Title: h.t(r, i18n.KeyLoginPage), Email: email})
	return false
}

func (h *Handler) resetLoginThrottle(r *http.Request, key string) {
	if h.limiter == nil {
		return
	}
	ctx := r.Context()
	if err := h.limiter.Reset(ctx, key); err != nil {
		h.logger.WarnContext(ctx, "failed to reset login throttle",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
}

// currentPerson resolves the acting person, answering 500 itself on failure.
func (h *Handler) currentPerson(w http.ResponseWriter, r *http.Request) (*models.Person, bool) {
	ctx := r.Context()
	p, err := h.gate.CurrentPerson(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve current person",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return p, true
}

// profileSubject loads the person named in the URL. People may edit only
// themselves unless they are administrators.
func (h *Handler) profileSubject(w http.ResponseWriter, r *http.Request) (current, subject *models.Person, ok bool) {
	ctx := r.Context()
	current, ok = h.currentPerson(w, r)
	if !ok {
		return nil, nil, false
	}
	if current == nil {
		http.Redirect(w, r, h.cfg.LoginURL, http.StatusFound)
		return nil, nil, false
	}

	subjectID, err := id.ParsePersonID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return nil, nil, false
	}
	if subjectID != current.ID && !current.Admin {
		st := gate.StateFromContext(ctx)
		st.Session.AddFlash(session.FlashError, h.t(r, i18n.KeyForbiddenProfileAccess))
		http.Redirect(w, r, h.cfg.HomeURL, http.StatusFound)
		return nil, nil, false
	}
	if subjectID == current.ID {
		return current, current, true
	}

	subject, err = h.people.FindByID(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		http.NotFound(w, r)
		return nil, nil, false
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load profile",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, nil, false
	}
	return current, subject, true
}
