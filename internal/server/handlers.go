package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Multitrix/cv-to-job-description/internal/schemas"
	"github.com/Multitrix/cv-to-job-description/internal/types"
)

// TailorRequest is the body of POST /tailor. The profile is optional; when
// omitted the user's stored profile is used.
type TailorRequest struct {
	UserID  string          `json:"user_id"`
	Profile json.RawMessage `json:"profile,omitempty"`
	Job     json.RawMessage `json:"job"`
}

// TailorResponse is the body of a successful POST /tailor
type TailorResponse struct {
	RunID    string                 `json:"run_id,omitempty"`
	Tailored *types.TailoredProfile `json:"tailored"`
}

func (s *Server) handleTailor(w http.ResponseWriter, r *http.Request) {
	var req TailorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		s.errorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Job) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "job is required")
		return
	}

	if err := schemas.ValidateJobDescription(req.Job); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	var jd types.JobDescription
	if err := json.Unmarshal(req.Job, &jd); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job description")
		return
	}

	profile, err := s.resolveProfile(r, req)
	if err != nil {
		var notFound *ErrProfileNotFound
		switch {
		case errors.As(err, &notFound):
			s.errorResponse(w, http.StatusNotFound, err.Error())
		case errors.As(err, new(*ErrPersistenceDisabled)):
			s.errorResponse(w, http.StatusBadRequest, "profile is required when persistence is not configured")
		default:
			s.errorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	tailored, err := s.tailorer.Tailor(r.Context(), req.UserID, profile, jd)
	if err != nil {
		s.log.Error("tailoring run failed", zap.String("user_id", req.UserID), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "Tailoring failed: "+err.Error())
		return
	}

	resp := TailorResponse{Tailored: tailored}
	if s.repo != nil {
		runID, err := s.repo.SaveRun(r.Context(), req.UserID, jd, tailored)
		if err != nil {
			// Persistence failure does not invalidate the tailored result
			s.log.Warn("failed to record tailoring run", zap.Error(err))
		} else if runID != uuid.Nil {
			resp.RunID = runID.String()
		}
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// resolveProfile takes the inline profile when present, otherwise falls back
// to the user's stored profile.
func (s *Server) resolveProfile(r *http.Request, req TailorRequest) (*types.Profile, error) {
	if len(req.Profile) > 0 {
		if err := schemas.ValidateProfile(req.Profile); err != nil {
			return nil, err
		}
		var profile types.Profile
		if err := json.Unmarshal(req.Profile, &profile); err != nil {
			return nil, err
		}
		return &profile, nil
	}

	if s.repo == nil {
		return nil, &ErrPersistenceDisabled{}
	}
	stored, err := s.repo.GetProfile(r.Context(), req.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, &ErrProfileNotFound{UserID: req.UserID}
	}
	return stored.Profile, nil
}
