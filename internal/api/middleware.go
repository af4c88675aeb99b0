package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/store"
)

type contextKey string

const profileContextKey contextKey = "profile"

// sessionCookieName is also accepted as a bearer token in the
// Authorization header.
const sessionCookieName = "opsdash_session"

// profileFromContext returns the authenticated profile, if any.
func profileFromContext(ctx context.Context) (*store.Profile, bool) {
	p, ok := ctx.Value(profileContextKey).(*store.Profile)
	return p, ok
}

// instrument logs each request and records HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.metrics != nil {
			s.metrics.HTTPRequestsInFlight.Inc()
			defer s.metrics.HTTPRequestsInFlight.Dec()
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := routePattern(r)

		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.
				WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			s.metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}

		s.logger.Info("http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

// routePattern returns the matched chi pattern so metric labels stay
// low-cardinality. Falls back to the raw path for unmatched requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// sessionToken extracts the session token from the Authorization header or
// the session cookie.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// withSession authenticates the request against the sessions table and puts
// the profile on the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			s.authFailure(w, "no_session", http.StatusUnauthorized, "authentication required")
			return
		}

		var session store.Session
		err := s.db.WithContext(r.Context()).
			Where("token = ?", token).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.authFailure(w, "no_session", http.StatusUnauthorized, "invalid session")
				return
			}
			s.logger.Error("failed to load session", "error", err)
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if time.Now().After(session.ExpiresAt) {
			// Expired sessions are removed opportunistically on first use.
			if delErr := s.db.WithContext(r.Context()).Delete(&session).Error; delErr != nil {
				s.logger.Warn("failed to delete expired session", "error", delErr)
			}
			s.authFailure(w, "expired", http.StatusUnauthorized, "session expired")
			return
		}

		var profile store.Profile
		if err := s.db.WithContext(r.Context()).First(&profile, session.ProfileID).Error; err != nil {
			s.logger.Error("failed to load session profile", "error", err)
			s.authFailure(w, "no_session", http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), profileContextKey, &profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route group to the given roles. Admins are allowed
// everywhere staff are by listing both roles at the call site.
func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := profileFromContext(r.Context())
			if !ok {
				s.authFailure(w, "no_session", http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if profile.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			s.authFailure(w, "forbidden", http.StatusForbidden, "insufficient role")
		})
	}
}

// authFailure records the rejection and writes the error response.
func (s *Server) authFailure(w http.ResponseWriter, reason string, status int, msg string) {
	if s.metrics != nil {
		s.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
	s.respondError(w, status, msg)
}
