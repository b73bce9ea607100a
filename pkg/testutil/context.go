package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// Browser carries cookies from one response to the next request so a test can
// walk through a multi-request flow such as login then redirect.
type Browser struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewBrowser returns a Browser with no cookies.
func NewBrowser() *Browser {
	return &Browser{cookies: make(map[string]*http.Cookie)}
}

// Do sends req to handler with the stored cookies and keeps any cookies the
// response sets. Expired cookies are forgotten.
func (b *Browser) Do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	b.mu.Lock()
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	b.mu.Unlock()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rr
}

// Cookie returns the stored cookie value for name, or "".
func (b *Browser) Cookie(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.cookies[name]; ok {
		return c.Value
	}
	return ""
}
