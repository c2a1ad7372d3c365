package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

type readingHistoryRequest struct {
	StoryID  string  `json:"storyId"`
	Progress float64 `json:"progress"`
}

// handleReadingHistory records how far the caller has read a story.
// Repeated reports for the same story overwrite the previous position.
func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req readingHistoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	history, err := s.app.ReportProgress(user, req.StoryID, req.Progress)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": history,
	})
}

// /api/favorites/{storyID}
func (s *Server) handleFavoriteByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	storyID := strings.TrimPrefix(r.URL.Path, "/api/favorites/")
	if storyID == "" || strings.Contains(storyID, "/") {
		http.NotFound(w, r)
		return
	}
	var err error
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		err = s.app.FavoriteStory(user, storyID)
	case http.MethodDelete:
		err = s.app.UnfavoriteStory(user, storyID)
	default:
		methodNotAllowed(w)
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type feedbackRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fb, err := s.app.SubmitFeedback(user, req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"feedback": fb,
	})
}

// handleBillingPortal hands back a hosted billing-portal URL the frontend
// redirects the user to.
func (s *Server) handleBillingPortal(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	url, err := s.app.BillingPortalURL(r.Context(), user, s.baseURL+"/account")
	if err != nil {
		s.audit(r, "billing.portal", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "billing.portal", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"url":     url,
	})
}
