// Package http holds the middleware used when serving a build output
// directory.
package http

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/prodbuild/internal/telemetry"
)

type contextKey string

const clientIPContextKey contextKey = "client_ip"

// ExtractClientIP returns the client address for a request, preferring the
// first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr without its port.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext returns the address stored by ClientIPMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIPMiddleware stores the client address in the request context.
func ClientIPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPContextKey, ExtractClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches logger to each request context and logs the
// completed request with its status, size and duration.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	metrics := telemetry.GetMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", ExtractClientIP(r)).
				Logger().WithContext(r.Context())

			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

			metrics.RequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", m.Code)))

			evt := zerolog.Ctx(ctx).Info()
			if m.Code >= http.StatusInternalServerError {
				evt = zerolog.Ctx(ctx).Error()
			}
			evt.Int("status", m.Code).
				Int64("bytes", m.Written).
				Dur("duration", m.Duration).
				Msg("http request")
		})
	}
}

// hashedName matches file names carrying an esbuild content hash such as
// "app.QX4MBGJ7.js", "chunk-5VQ2NBHK.js" or their precompressed siblings.
var hashedName = regexp.MustCompile(`[.-][A-Z0-9]{8}\.[a-z0-9]+(\.(gz|zst))?$`)

// CacheControl marks fingerprinted outputs immutable and everything else,
// including the HTML page and manifest, as requiring revalidation.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	immutable := "public, max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + ", immutable"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsHashedAsset(r.URL.Path) {
				w.Header().Set("Cache-Control", immutable)
			} else {
				w.Header().Set("Cache-Control", "no-cache")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsHashedAsset reports whether the last path element carries a content hash.
func IsHashedAsset(path string) bool {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return hashedName.MatchString(path)
}
