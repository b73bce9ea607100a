// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and page handlers read them without
// importing net/http.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	locale := requestcontext.Locale(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithLocale(ctx, "fr")
package requestcontext

import (
	"context"
	"time"

	id "webgate/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	personIDKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	refererKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	localeKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPersonID    = personIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyReferer     = refererKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyLocale      = localeKey{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// PersonID retrieves the resolved person ID from the context.
// Returns the zero value (nil UUID) for anonymous requests.
func PersonID(ctx context.Context) id.PersonID {
	if personID, ok := ctx.Value(ContextKeyPersonID).(id.PersonID); ok {
		return personID
	}
	return id.PersonID{}
}

// WithPersonID injects a person ID into the context.
func WithPersonID(ctx context.Context, personID id.PersonID) context.Context {
	return context.WithValue(ctx, ContextKeyPersonID, personID)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, Referer)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// Referer retrieves the Referer header value from the context.
func Referer(ctx context.Context) string {
	if ref, ok := ctx.Value(ContextKeyReferer).(string); ok {
		return ref
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and Referer into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, referer string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	ctx = context.WithValue(ctx, ContextKeyReferer, referer)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like seeding and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// -----------------------------------------------------------------------------
// Locale
// -----------------------------------------------------------------------------

// Locale retrieves the locale selected for this request.
// Returns "" when no locale has been selected yet.
func Locale(ctx context.Context) string {
	if l, ok := ctx.Value(ContextKeyLocale).(string); ok {
		return l
	}
	return ""
}

// WithLocale injects the resolved locale into the context.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ContextKeyLocale, locale)
}
