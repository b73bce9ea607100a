// Package gate is the before-request authentication and authorization gate
// shared by every page: it resolves the acting person from the session, runs an
// ordered chain of checks, and either lets the request through or redirects.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"webgate/internal/i18n"
	"webgate/internal/pageview"
	"webgate/internal/person/models"
	"webgate/internal/platform/config"
	"webgate/internal/platform/metrics"
	"webgate/internal/session"
	id "webgate/pkg/domain"
	emailaddr "webgate/pkg/email"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/platform/sentinel"
	"webgate/pkg/requestcontext"
)

// PersonStore is the identity lookup the gate depends on.
type PersonStore interface {
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	// TouchActivity writes only the activity timestamp, so a concurrent change
	// to the rest of the record (deactivation, role) is never overwritten.
	TouchActivity(ctx context.Context, personID id.PersonID, at time.Time) error
}

// SessionSaver persists the session before a redirect is written.
type SessionSaver interface {
	Save(ctx context.Context, w http.ResponseWriter, s *session.Session) error
}

// Translator builds user-facing messages and resolves locales.
type Translator interface {
	T(locale, key string, args ...any) string
	Match(raw string) (string, bool)
	Valid(raw string) bool
}

// Gate holds the collaborators shared by every request. It keeps no
// per-request data; that lives in State.
type Gate struct {
	people   PersonStore
	sessions SessionSaver
	tr       Translator
	cfg      config.GateConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder pageview.Recorder
	tracer   trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithMetrics counts step outcomes and identity lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithPageViewRecorder records every page request during RecordActivity.
func WithPageViewRecorder(r pageview.Recorder) Option {
	return func(g *Gate) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gate) {
		if t != nil {
			g.tracer = t
		}
	}
}

// New builds a Gate.
func New(people PersonStore, sessions SessionSaver, tr Translator, cfg config.GateConfig, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		people:   people,
		sessions: sessions,
		tr:       tr,
		cfg:      cfg,
		logger:   logger,
		recorder: pageview.Discard{},
		tracer:   otel.Tracer("webgate/internal/gate"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ResolveIdentity returns the person referenced by the session, or nil when
// the session has no usable reference or the account no longer exists. The
// result is memoized on st for the rest of the request. Store failures other
// than not-found are returned and not memoized.
func (g *Gate) ResolveIdentity(ctx context.Context, st *State) (*models.Person, error) {
	if st.resolved {
		return st.person, nil
	}

	raw := st.Session.Get(session.KeyPersonID)
	if raw == "" {
		st.person, st.resolved = nil, true
		g.metrics.ObserveIdentityLookup("anonymous", 0)
		return nil, nil
	}

	personID, err := id.ParsePersonID(raw)
	if err != nil {
		g.logger.DebugContext(ctx, "ignoring malformed session person reference",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		st.person, st.resolved = nil, true
		g.metrics.ObserveIdentityLookup("anonymous", 0)
		return nil, nil
	}

	start := time.Now()
	p, err := g.people.FindByID(ctx, personID)
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		g.metrics.ObserveIdentityLookup("anonymous", elapsedMs)
		st.person, st.resolved = nil, true
		return nil, nil
	case err != nil:
		g.metrics.ObserveIdentityLookup("error", elapsedMs)
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	g.metrics.ObserveIdentityLookup("identified", elapsedMs)
	st.person, st.resolved = p, true
	return p, nil
}

// CurrentPerson resolves the identity for the request carried by ctx. It
// returns nil outside the gate middleware.
func (g *Gate) CurrentPerson(ctx context.Context) (*models.Person, error) {
	st := StateFromContext(ctx)
	if st == nil {
		return nil, nil
	}
	return g.ResolveIdentity(ctx, st)
}

// IsLoggedIn reports whether an identity is present.
func IsLoggedIn(p *models.Person) bool {
	return p != nil
}

// IsAuthorized reports whether p may use the site: logged in and either active
// or an administrator.
func IsAuthorized(p *models.Person) bool {
	return IsLoggedIn(p) && (p.Active || p.Admin)
}

// RequireLogin redirects anonymous visitors to the login page, remembering
// where they were headed.
func (g *Gate) RequireLogin(ctx context.Context, st *State) (Decision, error) {
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return Decision{}, err
	}
	if IsLoggedIn(p) {
		return Allow(), nil
	}
	st.Session.Set(session.KeyReturnTo, st.URL)
	f := g.flash(st, session.FlashNotice, g.tr.T(g.localeFor(st, nil), i18n.KeyLoginRequired))
	return RedirectTo(g.cfg.LoginURL, f), nil
}

// RequireActivation sends logged-in people who are neither active nor admin to
// the logout page. The logout page itself is exempt so the redirect cannot loop.
func (g *Gate) RequireActivation(ctx context.Context, st *State) (Decision, error) {
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return Decision{}, err
	}
	if !IsLoggedIn(p) || IsAuthorized(p) {
		return Allow(), nil
	}
	if st.Path == g.cfg.LogoutURL {
		return Allow(), nil
	}
	return RedirectTo(g.cfg.LogoutURL, nil), nil
}

// RequireAdmin redirects everyone but administrators to the home page with an
// error notice.
func (g *Gate) RequireAdmin(ctx context.Context, st *State) (Decision, error) {
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return Decision{}, err
	}
	if p != nil && p.Admin {
		return Allow(), nil
	}
	f := g.flash(st, session.FlashError, g.tr.T(g.localeFor(st, p), i18n.KeyAdminAccessRequired))
	return RedirectTo(g.cfg.HomeURL, f), nil
}

// RecordActivity stamps LastLoggedInAt on page requests by logged-in people
// and records the page view. Both are best effort.
func (g *Gate) RecordActivity(ctx context.Context, st *State) (Decision, error) {
	if !st.Page {
		return Allow(), nil
	}
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return Decision{}, err
	}

	now := requestcontext.Now(ctx)
	if p != nil {
		if err := g.people.TouchActivity(ctx, p.ID, now); err != nil {
			g.logger.WarnContext(ctx, "failed to record activity timestamp",
				"error", err,
				"person_id", p.ID.String(),
				"request_id", request.GetRequestID(ctx),
			)
			g.metrics.IncrementActivitySaveFailures()
		} else {
			p.LastLoggedInAt = now
		}
	}

	view := pageview.View{
		URL:       st.URL,
		ClientIP:  requestcontext.ClientIP(ctx),
		Referer:   requestcontext.Referer(ctx),
		Device:    pageview.ParseUserAgent(requestcontext.UserAgent(ctx)),
		RequestID: request.GetRequestID(ctx),
		At:        now,
	}
	if p != nil {
		personID := p.ID
		view.PersonID = &personID
	}
	g.recorder.Record(ctx, view)
	return Allow(), nil
}

// AdminDefaultCredentialWarning reminds administrators still using an email at
// the placeholder domain to change it. It never blocks.
func (g *Gate) AdminDefaultCredentialWarning(ctx context.Context, st *State) (Decision, error) {
	if !st.Page {
		return Allow(), nil
	}
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return Decision{}, err
	}
	if p == nil || !p.Admin || !HasPlaceholderDomain(p.Email, g.cfg.PlaceholderDomain) {
		return Allow(), nil
	}

	locale := g.localeFor(st, p)
	msg := fmt.Sprintf("%s %s: %s",
		g.tr.T(locale, i18n.KeyWarningYourEmail, g.cfg.PlaceholderDomain),
		g.tr.T(locale, i18n.KeyChangeItHere),
		EditPersonPath(p.ID),
	)
	return AllowWithFlash(g.flash(st, session.FlashNotice, msg)), nil
}

// SelectLocale picks the locale for the request. A logged-in person's language
// always wins. Otherwise a valid locale parameter is remembered in the session
// and the session locale, or the default, is used. The result is stored on st.
func (g *Gate) SelectLocale(ctx context.Context, st *State) (string, error) {
	p, err := g.ResolveIdentity(ctx, st)
	if err != nil {
		return "", err
	}

	var locale string
	if p != nil {
		locale, _ = g.tr.Match(p.Language)
	} else {
		if st.RequestedLocale != "" && g.tr.Valid(st.RequestedLocale) {
			st.Session.Set(session.KeyLocale, st.RequestedLocale)
		}
		locale, _ = g.tr.Match(st.Session.Get(session.KeyLocale))
	}
	st.locale = locale
	return locale, nil
}

// RedirectBackOrDefault returns the remembered return_to location, clearing
// it, or def when none is stored. Only local paths are honored.
func RedirectBackOrDefault(st *State, def string) string {
	target := st.Session.Pop(session.KeyReturnTo)
	if !isLocalPath(target) {
		return def
	}
	return target
}

// HasPlaceholderDomain reports whether email is at domain, ignoring case.
func HasPlaceholderDomain(email, domain string) bool {
	if domain == "" {
		return false
	}
	return emailaddr.Domain(email) == strings.ToLower(domain)
}

// EditPersonPath is the profile edit page for personID.
func EditPersonPath(personID id.PersonID) string {
	return "/people/" + personID.String() + "/edit"
}

// localeFor is the locale for messages built before SelectLocale has run:
// the same resolution, without touching the session.
func (g *Gate) localeFor(st *State, p *models.Person) string {
	if st.locale != "" {
		return st.locale
	}
	if p == nil && st.resolved {
		p = st.person
	}
	if p != nil {
		l, _ := g.tr.Match(p.Language)
		return l
	}
	l, _ := g.tr.Match(st.Session.Get(session.KeyLocale))
	return l
}

func (g *Gate) flash(st *State, kind, msg string) *session.Flash {
	st.Session.AddFlash(kind, msg)
	return &session.Flash{Kind: kind, Message: msg}
}

func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
