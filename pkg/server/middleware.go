package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/harun/restx/internal/httputil"
	"github.com/harun/restx/internal/tracing"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// middleware wraps the router with shutdown tracking, request ids, rate
// limiting, panic recovery, access logging and metrics.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			httputil.WriteError(w, r, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		s.inFlightReqs.Add(1)
		s.shutdownMu.RUnlock()
		defer s.inFlightReqs.Done()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = tracing.NewRequestID()
		}
		r = r.WithContext(tracing.NewRequestContext(r.Context(), requestID))
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w}
		route := s.routeTemplate(r)

		if s.deps.Metrics != nil {
			s.deps.Metrics.InFlightRequests.Inc()
			defer s.deps.Metrics.InFlightRequests.Dec()
		}

		defer func() {
			if p := recover(); p != nil {
				s.logger.Error().
					Str("request_id", requestID).
					Str("panic", fmt.Sprint(p)).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				if rec.status == 0 {
					httputil.WriteError(rec, r, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", p))
				}
			}

			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordHTTPRequest(r.Method, route, rec.status)
			}
			s.logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		}()

		if ip := clientIP(r); !s.rateLimiter.Allow(ip) {
			retryAfter := s.rateLimiter.RetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")
			if s.deps.Metrics != nil {
				s.deps.Metrics.RateLimitedTotal.Inc()
			}
			rec.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteError(rec, r, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(rec, r)
	})
}

// routeTemplate labels metrics by route pattern rather than raw path.
func (s *Server) routeTemplate(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
