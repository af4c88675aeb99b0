package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/store"
)

// sessionTTL is how long a login stays valid without re-authenticating.
const sessionTTL = 7 * 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Profile   store.Profile `json:"profile"`
}

// handleLogin verifies credentials and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var profile store.Profile
	err := s.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.authFailure(w, "bad_credentials", http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.logger.Error("failed to look up profile", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		s.authFailure(w, "bad_credentials", http.StatusUnauthorized, "invalid email or password")
		return
	}

	session := store.Session{
		Token:     uuid.NewString(),
		ProfileID: profile.ID,
		ExpiresAt: time.Now().Add(sessionTTL).UTC(),
	}
	if err := s.db.WithContext(r.Context()).Create(&session).Error; err != nil {
		s.logger.Error("failed to create session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.audit(r, profile.ID, "login", "profile", profile.ID, "")

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("user logged in", "profile_id", profile.ID, "role", profile.Role)

	s.respondJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Profile:   profile,
	})
}

// handleLogout deletes the presented session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if err := s.db.WithContext(r.Context()).
		Where("token = ?", token).
		Delete(&store.Session{}).Error; err != nil {
		s.logger.Error("failed to delete session", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleMe returns the authenticated profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

// audit records an action taken through the API. Failures are logged and
// swallowed; audit writes never fail a request.
func (s *Server) audit(r *http.Request, actorID uint, action, entity string, entityID uint, detail string) {
	entry := store.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	}
	if err := s.db.WithContext(r.Context()).Create(&entry).Error; err != nil {
		s.logger.Warn("failed to write audit log", "action", action, "error", err)
	}
}
