package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"webgate/internal/platform/config"
	"webgate/internal/platform/logger"
	"webgate/internal/platform/metrics"
)

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) (map[string]string, error) { return nil, f.err }
func (f failingStore) Save(context.Context, string, map[string]string, time.Duration) error {
	return f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }

type ManagerSuite struct {
	suite.Suite
	store   *MemoryStore
	metrics *metrics.Metrics
	mgr     *Manager
	seq     int
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.seq = 0
	s.mgr = NewManager(s.store, config.SessionConfig{CookieName: "sid", TTL: time.Hour}, logger.Discard(),
		WithMetrics(s.metrics),
		WithTokenGenerator(func() string {
			s.seq++
			return fmt.Sprintf("token-%d", s.seq)
		}),
	)
}

func (s *ManagerSuite) requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: value})
	}
	return req
}

func (s *ManagerSuite) TestLoad() {
	s.Run("missing cookie yields a new session", func() {
		sess, err := s.mgr.Load(s.requestWithCookie(""))
		s.Require().NoError(err)
		s.True(sess.IsNew())
		s.NotEmpty(sess.Token())
	})

	s.Run("unknown token yields a new session under a fresh token", func() {
		sess, err := s.mgr.Load(s.requestWithCookie("forged"))
		s.Require().NoError(err)
		s.True(sess.IsNew())
		s.NotEqual("forged", sess.Token())
	})

	s.Run("known token loads values", func() {
		s.Require().NoError(s.store.Save(context.Background(), "known", map[string]string{KeyLocale: "fr"}, time.Hour))

		sess, err := s.mgr.Load(s.requestWithCookie("known"))
		s.Require().NoError(err)
		s.False(sess.IsNew())
		s.Equal("fr", sess.Get(KeyLocale))
	})

	s.Run("store failure propagates", func() {
		boom := errors.New("boom")
		mgr := NewManager(failingStore{err: boom}, config.SessionConfig{CookieName: "sid"}, logger.Discard())

		_, err := mgr.Load(s.requestWithCookie("known"))
		s.Require().ErrorIs(err, boom)
	})
}

func (s *ManagerSuite) TestSave() {
	s.Run("untouched new session writes nothing", func() {
		sess, err := s.mgr.Load(s.requestWithCookie(""))
		s.Require().NoError(err)
		rr := httptest.NewRecorder()

		s.Require().NoError(s.mgr.Save(context.Background(), rr, sess))
		s.Empty(rr.Result().Cookies())
		s.Equal(0, s.store.Len())
	})

	s.Run("dirty session is persisted and cookie set", func() {
		sess, err := s.mgr.Load(s.requestWithCookie(""))
		s.Require().NoError(err)
		sess.Set(KeyLocale, "es")
		rr := httptest.NewRecorder()

		s.Require().NoError(s.mgr.Save(context.Background(), rr, sess))

		cookies := rr.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(sess.Token(), cookies[0].Value)
		s.True(cookies[0].HttpOnly)
		s.Equal(http.SameSiteLaxMode, cookies[0].SameSite)
		s.False(sess.Dirty())

		values, err := s.store.Load(context.Background(), sess.Token())
		s.Require().NoError(err)
		s.Equal("es", values[KeyLocale])
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionSaves.WithLabelValues("ok")))
	})

	s.Run("store failure is returned and counted", func() {
		m := metrics.New(prometheus.NewRegistry())
		mgr := NewManager(failingStore{err: errors.New("down")}, config.SessionConfig{}, logger.Discard(), WithMetrics(m))
		sess := NewForTest(nil)
		sess.Set(KeyLocale, "fr")

		s.Require().Error(mgr.Save(context.Background(), httptest.NewRecorder(), sess))
		s.Equal(1.0, testutil.ToFloat64(m.SessionSaves.WithLabelValues("error")))
	})
}

func (s *ManagerSuite) TestDestroy() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "old", map[string]string{KeyPersonID: "p"}, time.Hour))
	sess, err := s.mgr.Load(s.requestWithCookie("old"))
	s.Require().NoError(err)

	rr := httptest.NewRecorder()
	s.Require().NoError(s.mgr.Destroy(ctx, rr, sess))

	_, err = s.store.Load(ctx, "old")
	s.Require().Error(err)
	s.True(sess.IsNew())
	s.NotEqual("old", sess.Token())
	s.Empty(sess.Get(KeyPersonID))

	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(-1, cookies[0].MaxAge)
}

func (s *ManagerSuite) TestMiddleware() {
	s.Run("attaches session to context", func() {
		var got *Session
		h := s.mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		}))
		h.ServeHTTP(httptest.NewRecorder(), s.requestWithCookie(""))
		s.NotNil(got)
	})

	s.Run("store failure returns 500", func() {
		mgr := NewManager(failingStore{err: errors.New("down")}, config.SessionConfig{CookieName: "sid"}, logger.Discard())
		called := false
		h := mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, s.requestWithCookie("known"))

		s.Equal(http.StatusInternalServerError, rr.Code)
		s.False(called)
	})

	s.Run("saves before the response body is written", func() {
		before := testutil.ToFloat64(s.metrics.SessionSaves.WithLabelValues("ok"))
		h := s.mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Set(KeyLocale, "fr")
			_, _ = w.Write([]byte("hello"))
			// Changes after the header is out are not persisted.
			FromContext(r.Context()).Set(KeyLocale, "de")
		}))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, s.requestWithCookie(""))

		cookies := rr.Result().Cookies()
		s.Require().Len(cookies, 1)
		values, err := s.store.Load(context.Background(), cookies[0].Value)
		s.Require().NoError(err)
		s.Equal("fr", values[KeyLocale])
		s.Equal(before+1, testutil.ToFloat64(s.metrics.SessionSaves.WithLabelValues("ok")))
	})

	s.Run("saves after a handler that writes nothing", func() {
		before := testutil.ToFloat64(s.metrics.SessionSaves.WithLabelValues("ok"))
		h := s.mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Set(KeyReturnTo, "/admin")
		}))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, s.requestWithCookie(""))

		s.Len(rr.Result().Cookies(), 1)
		s.Equal(before+1, testutil.ToFloat64(s.metrics.SessionSaves.WithLabelValues("ok")))
	})

	s.Run("clean session is not written", func() {
		before := s.store.Len()
		h := s.mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, s.requestWithCookie(""))

		s.Empty(rr.Result().Cookies())
		s.Equal(before, s.store.Len())
	})
}
