package httpapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// TenantRateLimiter enforces one token bucket per tenant, keyed from the
// authenticated Principal rather than source IP: callers share
// infrastructure (CI runners, shared VPNs) behind a handful of IPs, but
// every tenant's quota must be independent of its neighbors'.
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewTenantRateLimiter builds a limiter with rps requests/second and the
// given burst, sized per tenant.
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	rl := &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.cleanup()
	return rl
}

func (rl *TenantRateLimiter) limiterFor(tenantID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[tenantID] = l
	}
	return l
}

// cleanup periodically drops idle tenant limiters so a long-lived
// process doesn't accumulate one entry per tenant ever seen.
func (rl *TenantRateLimiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		rl.mu.Lock()
		for id, l := range rl.limiters {
			if l.TokensAt(time.Now()) >= float64(rl.burst) {
				delete(rl.limiters, id)
			}
		}
		rl.mu.Unlock()
	}
}

// middleware enforces the tenant's rate limit. It must run after
// requireAuth has populated the request context with a Principal;
// requests with no Principal (public/unauthenticated routes) pass
// through unthrottled here.
func (rl *TenantRateLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			next(w, r)
			return
		}
		if !rl.limiterFor(principal.TenantID).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "tenant rate limit exceeded", nil)
			return
		}
		next(w, r)
	}
}

// requestLogger logs every request at completion with its outcome. It
// uses slog rather than the standard logger so fields stay structured
// and attach cleanly to whatever handler the process is configured
// with.
func requestLogger(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// tracer is the package-level otel tracer, resolved through otel's
// global TracerProvider. No SpanExporter is registered anywhere in this
// module: without a provider installed the global one is a no-op, and
// soectl serve installs an SDK provider with no exporter, so spans are
// recorded and propagated through context but never exported. A process
// embedding this package can register a real exporter via
// otel.SetTracerProvider without any change here.
var tracer = otel.Tracer("github.com/tracepack/mfgplan/pkg/httpapi")

// traced starts one span per request named after the route pattern,
// so a real exporter (if one is ever wired in by the embedding
// process) gets a span tree for free.
func traced(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		next(w, r.WithContext(ctx))
	}
}
