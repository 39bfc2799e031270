package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

type permissionsContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func permissionsFromContext(ctx context.Context) *domain.APIKeyPermissions {
	if ctx == nil {
		return nil
	}
	perms, _ := ctx.Value(permissionsContextKey{}).(*domain.APIKeyPermissions)
	return perms
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the bearer key to its permission set and applies
// the key's rate limit. Without a key store the service runs open, which
// is the local-development mode.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.keyStore == nil || !strings.HasPrefix(r.URL.Path, "/api/") ||
			r.URL.Path == "/api/v1/intelligent/health" {
			next.ServeHTTP(w, r)
			return
		}

		key := bearerToken(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		perms, err := rt.keyStore.ResolveKey(r.Context(), key)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if !rt.limiters.allow(perms) {
			if rt.metrics != nil {
				rt.metrics.RecordRateLimited(rt.serviceName)
			}
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx := context.WithValue(r.Context(), permissionsContextKey{}, perms)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// keyLimiters keeps one token bucket per API key, sized from the key's
// stored limits.
type keyLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newKeyLimiters() *keyLimiters {
	return &keyLimiters{limiters: make(map[string]*rate.Limiter)}
}

func (l *keyLimiters) allow(perms *domain.APIKeyPermissions) bool {
	if perms.RateLimitPerSec <= 0 {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.limiters[perms.KeyID]
	if !ok {
		burst := perms.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perms.RateLimitPerSec), burst)
		l.limiters[perms.KeyID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteAddr,
			"user_agent", r.UserAgent(),
		}

		switch {
		case recorder.statusCode >= 500:
			slog.Error("http_request", logAttrs...)
		case recorder.statusCode >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
