package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openscholar/submission-service/internal/domain"
)

// createUserRequest is the body of POST /users. The admin flag is absent on
// purpose: privilege is never granted through the profile API.
type createUserRequest struct {
	UID          string `json:"uid" validate:"required,max=128"`
	DisplayName  string `json:"display_name" validate:"required,max=200"`
	Username     string `json:"username,omitempty" validate:"omitempty,min=3,max=50,alphanum"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,e164"`
	Institution  string `json:"institution,omitempty" validate:"max=300"`
	ResearcherID string `json:"researcher_id,omitempty" validate:"max=100"`
	Role         string `json:"role,omitempty" validate:"omitempty,oneof=author reviewer admin"`
}

type updateUserRequest struct {
	DisplayName  string `json:"display_name" validate:"required,max=200"`
	Username     string `json:"username,omitempty" validate:"omitempty,min=3,max=50,alphanum"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,e164"`
	Institution  string `json:"institution,omitempty" validate:"max=300"`
	ResearcherID string `json:"researcher_id,omitempty" validate:"max=100"`
	Role         string `json:"role,omitempty" validate:"omitempty,oneof=author reviewer admin"`
}

// createUser handles POST /users. A caller may only create a profile for
// their own token UID; admins may create profiles for anyone.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if req.UID != caller.UID && !caller.Admin {
		writeError(w, http.StatusForbidden, "cannot create a profile for another user")
		return
	}

	user := &domain.User{
		UID:          req.UID,
		DisplayName:  req.DisplayName,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Institution:  req.Institution,
		ResearcherID: req.ResearcherID,
		Role:         domain.Role(req.Role),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().Str("uid", created.UID).Msg("user profile created")
	writeJSON(w, http.StatusCreated, domainUserToResponse(created))
}

// getUser handles GET /users/{uid}. Profiles are visible to their owner and
// to admins only.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)
	uid := chi.URLParam(r, "uid")

	if uid != caller.UID && !caller.Admin {
		writeError(w, http.StatusForbidden, "cannot view another user's profile")
		return
	}

	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainUserToResponse(user))
}

// updateUser handles PUT /users/{uid}. The admin flag cannot be changed here
// regardless of what the body carries; the repository never writes it.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)
	uid := chi.URLParam(r, "uid")

	if uid != caller.UID && !caller.Admin {
		writeError(w, http.StatusForbidden, "cannot modify another user's profile")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	user := &domain.User{
		UID:          uid,
		DisplayName:  req.DisplayName,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Institution:  req.Institution,
		ResearcherID: req.ResearcherID,
		Role:         domain.Role(req.Role),
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainUserToResponse(updated))
}

// checkUsername handles GET /users/check-username?username=...&exclude_uid=...
// It is public so signup forms can check availability before registration.
func (s *Server) checkUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username query parameter is required")
		return
	}

	taken, err := s.users.IsUsernameTaken(r.Context(), username, r.URL.Query().Get("exclude_uid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{IsTaken: taken})
}

// checkPhone handles GET /users/check-phone?phone=...&exclude_uid=...
func (s *Server) checkPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone query parameter is required")
		return
	}

	taken, err := s.users.IsPhoneTaken(r.Context(), phone, r.URL.Query().Get("exclude_uid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{IsTaken: taken})
}
