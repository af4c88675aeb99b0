package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"curbcycle.dev/opsdash/internal/store"
)

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	return uint(id), err
}

// handleListProfiles returns all profiles, optionally filtered by role.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("id")
	if role := r.URL.Query().Get("role"); role != "" {
		q = q.Where("role = ?", role)
	}

	var profiles []store.Profile
	if err := q.Find(&profiles).Error; err != nil {
		s.respondStoreError(w, err, "profiles")
		return
	}
	s.respondJSON(w, http.StatusOK, profiles)
}

type createProfileRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// handleCreateProfile registers a new account.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		s.respondError(w, http.StatusBadRequest, "email, password and full_name are required")
		return
	}
	switch req.Role {
	case store.RoleCustomer, store.RoleEmployee, store.RoleAdmin:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	profile := store.Profile{
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		FullName:     req.FullName,
		Phone:        req.Phone,
	}
	if err := s.db.WithContext(r.Context()).Create(&profile).Error; err != nil {
		s.logger.Error("failed to create profile", "error", err)
		s.respondError(w, http.StatusConflict, "email already registered")
		return
	}

	if actor, ok := profileFromContext(r.Context()); ok {
		s.audit(r, actor.ID, "create", "profile", profile.ID, profile.Email)
	}

	s.respondJSON(w, http.StatusCreated, profile)
}

// handleGetProfile returns a single profile by id.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	var profile store.Profile
	if err := s.db.WithContext(r.Context()).First(&profile, id).Error; err != nil {
		s.respondStoreError(w, err, "profile")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

// handleUpdateProfile applies a partial update to a profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var profile store.Profile
	if err := s.db.WithContext(r.Context()).First(&profile, id).Error; err != nil {
		s.respondStoreError(w, err, "profile")
		return
	}

	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Role != nil {
		switch *req.Role {
		case store.RoleCustomer, store.RoleEmployee, store.RoleAdmin:
			updates["role"] = *req.Role
		default:
			s.respondError(w, http.StatusBadRequest, "invalid role")
			return
		}
	}
	if len(updates) == 0 {
		s.respondJSON(w, http.StatusOK, profile)
		return
	}

	if err := s.db.WithContext(r.Context()).Model(&profile).Updates(updates).Error; err != nil {
		s.respondStoreError(w, err, "profile")
		return
	}

	if actor, ok := profileFromContext(r.Context()); ok {
		s.audit(r, actor.ID, "update", "profile", profile.ID, "")
	}

	s.respondJSON(w, http.StatusOK, profile)
}
