package transport

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/gate4ai/a2a"
	"golang.org/x/time/rate"
)

// RateLimit wraps next with a per-client-IP token bucket, grounded on
// the teacher's server/mcp/validators/throttling.go session-keyed
// limiter-pair idiom, generalized from per-session to per-remote-addr
// since this layer runs ahead of any session concept.
func RateLimit(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	limiters := &limiterRegistry{byIP: make(map[string]*rate.Limiter), rps: rps, burst: burst}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiters.forRequest(r).Allow() {
			writeTooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type limiterRegistry struct {
	mu    sync.Mutex
	byIP  map[string]*rate.Limiter
	rps   float64
	burst int
}

func (l *limiterRegistry) forRequest(r *http.Request) *rate.Limiter {
	ip := clientIP(r)
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.byIP[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.byIP[ip] = limiter
	}
	return limiter
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	resp := a2a.Response{JSONRPC: a2a.Version, Error: a2a.NewInvalidRequest("rate limit exceeded")}
	body, _ := json.Marshal(resp)
	w.Write(body)
}
