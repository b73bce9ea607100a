// Package token guards operational endpoints with a shared secret header.
package token

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "webgate/pkg/platform/middleware/request"
)

// HeaderMetricsToken carries the scrape secret for /metrics.
const HeaderMetricsToken = "X-Metrics-Token"

// Require rejects requests whose header does not carry expected. An empty
// expected value disables the check.
func Require(header, expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "operational token mismatch",
					"header", header,
					"request_id", request.GetRequestID(ctx),
				)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
