package gate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"webgate/internal/person/models"
	"webgate/internal/platform/metrics"
	"webgate/internal/session"
	id "webgate/pkg/domain"
	"webgate/pkg/requestcontext"
)

// =============================================================================
// Chain Ordering and Middleware
// =============================================================================
// Justification: the chain order is a contract. A redirect must halt every
// later step, and the session must be persisted before the redirect is sent.

func recordingStep(name string, calls *[]string, d Decision) Step {
	return Step{Name: name, Run: func(context.Context, *State) (Decision, error) {
		*calls = append(*calls, name)
		return d, nil
	}}
}

func (s *GateSuite) TestRun() {
	ctx := context.Background()

	s.Run("first redirect halts the chain", func() {
		var calls []string
		steps := []Step{
			recordingStep("one", &calls, Allow()),
			recordingStep("two", &calls, RedirectTo("/elsewhere", nil)),
			recordingStep("three", &calls, Allow()),
		}

		d, err := s.gate.Run(ctx, pageState("/", nil), steps)

		s.Require().NoError(err)
		s.True(d.Redirect)
		s.Equal("/elsewhere", d.URL)
		s.Equal([]string{"one", "two"}, calls)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues("two", metrics.OutcomeRedirect)))
		s.Equal(float64(0), testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues("three", metrics.OutcomeAllow)))
	})

	s.Run("error halts the chain", func() {
		var calls []string
		boom := errors.New("boom")
		steps := []Step{
			{Name: "fails", Run: func(context.Context, *State) (Decision, error) { return Decision{}, boom }},
			recordingStep("never", &calls, Allow()),
		}

		_, err := s.gate.Run(ctx, pageState("/", nil), steps)

		s.ErrorIs(err, boom)
		s.Empty(calls)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues("fails", metrics.OutcomeError)))
	})

	s.Run("default chain order", func() {
		var names []string
		for _, step := range s.gate.DefaultChain() {
			names = append(names, step.Name)
		}
		s.Equal([]string{StepRecordActivity, StepRequireActivation, StepAdminWarning, StepSelectLocale}, names)
	})

	s.Run("deactivated person stops before locale selection", func() {
		person := newPerson(func(p *models.Person) { p.Active, p.Admin = false, false })
		st := pageState("/", loggedIn(person))
		s.people.EXPECT().FindByID(gomock.Any(), person.ID).Return(person, nil).Times(1)
		s.people.EXPECT().TouchActivity(gomock.Any(), person.ID, gomock.Any()).Return(nil).Times(1)

		d, err := s.gate.Run(ctx, st, s.gate.DefaultChain())

		s.Require().NoError(err)
		s.True(d.Redirect)
		s.Equal("/logout", d.URL)
		s.Empty(st.Locale())
	})

	s.Run("full chain resolves identity once", func() {
		person := newPerson(func(p *models.Person) {
			p.Admin, p.Email, p.Language = true, "root@example.com", "es"
		})
		st := pageState("/", loggedIn(person))
		s.people.EXPECT().FindByID(gomock.Any(), person.ID).Return(person, nil).Times(1)
		s.people.EXPECT().TouchActivity(gomock.Any(), person.ID, gomock.Any()).Return(nil).Times(1)

		d, err := s.gate.Run(ctx, st, s.gate.DefaultChain())

		s.Require().NoError(err)
		s.False(d.Redirect)
		s.Equal("es", st.Locale())
		flashes := st.Session.PeekFlashes()
		s.Require().Len(flashes, 1)
		s.Contains(flashes[0].Message, "Cámbiela aquí")
	})
}

func (s *GateSuite) TestMiddleware() {
	serve := func(h http.Handler, req *http.Request, sess *session.Session) *httptest.ResponseRecorder {
		if sess != nil {
			req = req.WithContext(session.WithSession(req.Context(), sess))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	s.Run("redirect saves the session once and answers 302", func() {
		sess := session.NewForTest(nil)
		s.sessions.EXPECT().Save(gomock.Any(), gomock.Any(), sess).Return(nil).Times(1)
		called := false
		h := s.gate.RequireLoginMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/people/1/edit", nil), sess)

		s.Equal(http.StatusFound, rr.Code)
		s.Equal("/login", rr.Header().Get("Location"))
		s.Equal("/people/1/edit", sess.Get(session.KeyReturnTo))
		s.False(called)
	})

	s.Run("allowed request carries locale and person id", func() {
		person := newPerson(func(p *models.Person) { p.Language = "de" })
		sess := session.NewForTest(loggedIn(person))
		s.people.EXPECT().FindByID(gomock.Any(), person.ID).Return(person, nil).Times(1)
		s.people.EXPECT().TouchActivity(gomock.Any(), person.ID, gomock.Any()).Return(nil)

		var gotLocale string
		var gotPerson id.PersonID
		var gotState *State
		h := s.gate.Middleware(s.gate.DefaultChain()...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLocale = requestcontext.Locale(r.Context())
			gotPerson = requestcontext.PersonID(r.Context())
			gotState = StateFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil), sess)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("de", gotLocale)
		s.Equal(person.ID, gotPerson)
		s.Require().NotNil(gotState)
		s.Same(sess, gotState.Session)
	})

	s.Run("nested gates share one identity lookup", func() {
		person := newPerson(func(p *models.Person) { p.Admin = true })
		sess := session.NewForTest(loggedIn(person))
		s.people.EXPECT().FindByID(gomock.Any(), person.ID).Return(person, nil).Times(1)
		s.people.EXPECT().TouchActivity(gomock.Any(), person.ID, gomock.Any()).Return(nil)

		called := false
		inner := s.gate.RequireAdminMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		h := s.gate.Middleware(s.gate.DefaultChain()...)(inner)

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/admin", nil), sess)

		s.Equal(http.StatusOK, rr.Code)
		s.True(called)
	})

	s.Run("store failure answers 500", func() {
		person := newPerson(nil)
		sess := session.NewForTest(loggedIn(person))
		s.people.EXPECT().FindByID(gomock.Any(), person.ID).Return(nil, errors.New("connection refused"))

		h := s.gate.Middleware(s.gate.DefaultChain()...)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			s.Fail("handler must not run")
		}))

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil), sess)

		s.Equal(http.StatusInternalServerError, rr.Code)
	})

	s.Run("session save failure on redirect answers 500", func() {
		sess := session.NewForTest(nil)
		s.sessions.EXPECT().Save(gomock.Any(), gomock.Any(), sess).Return(errors.New("redis down"))

		h := s.gate.RequireLoginMiddleware()(http.NotFoundHandler())

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/admin", nil), sess)

		s.Equal(http.StatusInternalServerError, rr.Code)
	})

	s.Run("missing session answers 500", func() {
		h := s.gate.Middleware(s.gate.DefaultChain()...)(http.NotFoundHandler())

		rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil), nil)

		s.Equal(http.StatusInternalServerError, rr.Code)
	})
}
