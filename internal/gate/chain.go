package gate

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"webgate/internal/platform/metrics"
	"webgate/internal/session"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/requestcontext"
)

// Step is one named check in a gate chain.
type Step struct {
	Name string
	Run  func(ctx context.Context, st *State) (Decision, error)
}

// Named steps, in the order DefaultChain runs them.
const (
	StepRecordActivity    = "record_activity"
	StepRequireActivation = "require_activation"
	StepAdminWarning      = "admin_default_credential_warning"
	StepSelectLocale      = "select_locale"
	StepRequireLogin      = "require_login"
	StepRequireAdmin      = "require_admin"
)

// DefaultChain is the chain every page passes through.
func (g *Gate) DefaultChain() []Step {
	return []Step{
		{Name: StepRecordActivity, Run: g.RecordActivity},
		{Name: StepRequireActivation, Run: g.RequireActivation},
		{Name: StepAdminWarning, Run: g.AdminDefaultCredentialWarning},
		{Name: StepSelectLocale, Run: g.selectLocaleStep},
	}
}

// LoginStep requires a logged-in person.
func (g *Gate) LoginStep() Step {
	return Step{Name: StepRequireLogin, Run: g.RequireLogin}
}

// AdminStep requires an administrator.
func (g *Gate) AdminStep() Step {
	return Step{Name: StepRequireAdmin, Run: g.RequireAdmin}
}

func (g *Gate) selectLocaleStep(ctx context.Context, st *State) (Decision, error) {
	if _, err := g.SelectLocale(ctx, st); err != nil {
		return Decision{}, err
	}
	return Allow(), nil
}

// Run executes steps in order and returns the first redirect, or Allow when
// every step lets the request through. An error halts the chain.
func (g *Gate) Run(ctx context.Context, st *State, steps []Step) (Decision, error) {
	ctx, span := g.tracer.Start(ctx, "gate.chain")
	defer span.End()

	for _, step := range steps {
		d, err := step.Run(ctx, st)
		if err != nil {
			g.metrics.ObserveDecision(step.Name, metrics.OutcomeError)
			span.RecordError(err)
			span.SetStatus(codes.Error, step.Name)
			return Decision{}, err
		}
		g.metrics.ObserveDecision(step.Name, d.outcome())
		if d.Redirect {
			span.SetAttributes(
				attribute.String("gate.halted_by", step.Name),
				attribute.String("gate.redirect", d.URL),
			)
			return d, nil
		}
	}
	return Allow(), nil
}

// Middleware runs steps before next. A redirect saves the session and answers
// 302. Otherwise the resolved locale and person id are placed on the request
// context. The session middleware must run first.
func (g *Gate) Middleware(steps ...Step) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := session.FromContext(ctx)
			if sess == nil {
				g.logger.ErrorContext(ctx, "gate reached without a session",
					"request_id", request.GetRequestID(ctx),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			st := StateFromContext(ctx)
			if st == nil {
				st = NewState(r, sess)
				ctx = WithState(ctx, st)
			}

			d, err := g.Run(ctx, st, steps)
			if err != nil {
				g.logger.ErrorContext(ctx, "gate check failed",
					"error", err,
					"path", st.Path,
					"request_id", request.GetRequestID(ctx),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if d.Redirect {
				if err := g.sessions.Save(ctx, w, st.Session); err != nil {
					g.logger.ErrorContext(ctx, "failed to persist session before redirect",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				http.Redirect(w, r, d.URL, http.StatusFound)
				return
			}

			if st.locale != "" {
				ctx = requestcontext.WithLocale(ctx, st.locale)
			}
			if st.person != nil {
				ctx = requestcontext.WithPersonID(ctx, st.person.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLoginMiddleware gates a route on login.
func (g *Gate) RequireLoginMiddleware() func(http.Handler) http.Handler {
	return g.Middleware(g.LoginStep())
}

// RequireAdminMiddleware gates a route on login and administrator rights.
func (g *Gate) RequireAdminMiddleware() func(http.Handler) http.Handler {
	return g.Middleware(g.LoginStep(), g.AdminStep())
}
