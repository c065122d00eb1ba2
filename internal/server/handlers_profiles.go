package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Multitrix/cv-to-job-description/internal/schemas"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Profile persistence is not configured")
		return
	}
	userID := r.PathValue("user_id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := schemas.ValidateProfile(body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var profile types.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := profile.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.SaveProfile(r.Context(), userID, &profile); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "saved", "user_id": userID})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Profile persistence is not configured")
		return
	}
	userID := r.PathValue("user_id")

	stored, err := s.repo.GetProfile(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if stored == nil {
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Profile persistence is not configured")
		return
	}
	userID := r.PathValue("user_id")

	if err := s.repo.DeleteProfile(r.Context(), userID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.errorResponse(w, http.StatusNotFound, "Profile not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Profile persistence is not configured")
		return
	}
	userID := r.PathValue("user_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := s.repo.ListRuns(r.Context(), userID, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}
