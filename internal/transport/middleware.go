package transport

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type groupKey struct{}

// GroupFromContext returns the group id resolved by GroupMiddleware.
func GroupFromContext(ctx context.Context) (int64, bool) {
	groupID, ok := ctx.Value(groupKey{}).(int64)
	return groupID, ok
}

// GroupMiddleware parses the {group} URL parameter and rejects groups for
// which allowed returns false. A nil allowed accepts all groups.
func GroupMiddleware(allowed func(int64) bool, rejected RejectionObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			groupID, err := strconv.ParseInt(chi.URLParam(r, "group"), 10, 64)
			if err != nil || groupID == 0 {
				writeError(w, http.StatusBadRequest, CodeMissingIdentity, "group id must be a non-zero integer")
				return
			}
			if allowed != nil && !allowed(groupID) {
				rejected.Rejected(CodeGroupNotAllowed)
				writeError(w, http.StatusForbidden, CodeGroupNotAllowed, "group is not allowed")
				return
			}
			ctx := context.WithValue(r.Context(), groupKey{}, groupID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Limiter hands out one token bucket per group.
type Limiter struct {
	limit rate.Limit
	burst int

	mu     sync.Mutex
	groups map[int64]*rate.Limiter
}

// NewLimiter returns a limiter allowing perSecond signals per group with
// the given burst. A non-positive perSecond returns nil, which allows
// everything.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		groups: make(map[int64]*rate.Limiter),
	}
}

// Allow reports whether groupID may send one more signal now.
func (l *Limiter) Allow(groupID int64) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.groups[groupID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.groups[groupID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware rejects requests once the group's bucket is empty.
// It must run after GroupMiddleware.
func RateLimitMiddleware(l *Limiter, rejected RejectionObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			groupID, _ := GroupFromContext(r.Context())
			if !l.Allow(groupID) {
				rejected.Rejected(CodeRateLimited)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many signals for this group")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("http request", fields...)
				return
			}
			logger.Debug("http request", fields...)
		})
	}
}
