package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

var allowedCoverExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   users,
		"count":   len(users),
	})
}

type creditsRequest struct {
	Credits *int `json:"credits"`
}

// Admin mutation responses return only the fields the mutation touched,
// not the full record.
type adminUserResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

type adminStoryResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Published bool   `json:"published"`
}

// /api/admin/users/{id}/credits
func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 || parts[1] != "credits" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req creditsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Credits == nil {
		writeError(w, http.StatusBadRequest, "credits is required")
		return
	}
	user, err := s.app.AdjustCredits(id, *req.Credits)
	if err != nil {
		s.audit(r, "admin.users.credits", "fail", "admin_id", admin.ID, "user_id", id, "reason", err.Error())
		writeAdminError(w, err)
		return
	}
	s.audit(r, "admin.users.credits", "success", "admin_id", admin.ID, "user_id", id, "credits", *req.Credits)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    adminUserResponse{ID: user.ID, Email: user.Email, Credits: user.Credits},
	})
}

// /api/admin/stories/{id} and /api/admin/stories/{id}/{publish|unpublish|cover}
func (s *Server) handleAdminStoryByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/stories/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "publish":
			s.handleAdminPublish(w, r, admin, id, true)
		case "unpublish":
			s.handleAdminPublish(w, r, admin, id, false)
		case "cover":
			s.handleAdminCover(w, r, admin, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteStory(id); err != nil {
		s.audit(r, "admin.stories.delete", "fail", "admin_id", admin.ID, "story_id", id, "reason", err.Error())
		writeAdminError(w, err)
		return
	}
	s.audit(r, "admin.stories.delete", "success", "admin_id", admin.ID, "story_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminPublish(w http.ResponseWriter, r *http.Request, admin domain.User, id string, publish bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	event := "admin.stories.unpublish"
	op := s.app.UnpublishStory
	if publish {
		event = "admin.stories.publish"
		op = s.app.PublishStory
	}
	story, err := op(id)
	if err != nil {
		s.audit(r, event, "fail", "admin_id", admin.ID, "story_id", id, "reason", err.Error())
		writeAdminError(w, err)
		return
	}
	s.audit(r, event, "success", "admin_id", admin.ID, "story_id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"story":   adminStoryResponse{ID: story.ID, Title: story.Title, Published: story.Published},
	})
}

func (s *Server) handleAdminCover(w http.ResponseWriter, r *http.Request, admin domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxCoverBytes)
	if err := r.ParseMultipartForm(s.maxCoverBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover file is required (field: cover)")
		return
	}
	defer file.Close()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedCoverExtensions[ext]; !ok {
		writeError(w, http.StatusBadRequest, "unsupported image type")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	story, err := s.app.UploadCover(r.Context(), id, contentType, file, header.Size)
	if err != nil {
		s.audit(r, "admin.stories.cover", "fail", "admin_id", admin.ID, "story_id", id, "reason", err.Error())
		writeAdminError(w, err)
		return
	}
	s.audit(r, "admin.stories.cover", "success", "admin_id", admin.ID, "story_id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"story":   s.storyPayload(r, story),
	})
}

func (s *Server) handleAdminFeedback(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.app.ListFeedback()
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
		"count":   len(items),
	})
}

type feedbackStatusRequest struct {
	Status string `json:"status"`
}

// /api/admin/feedback/{id}
func (s *Server) handleAdminFeedbackByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/feedback/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req feedbackStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, ok := parseFeedbackStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	fb, err := s.app.SetFeedbackStatus(id, status)
	if err != nil {
		s.audit(r, "admin.feedback.status", "fail", "admin_id", admin.ID, "feedback_id", id, "reason", err.Error())
		writeAdminError(w, err)
		return
	}
	s.audit(r, "admin.feedback.status", "success", "admin_id", admin.ID, "feedback_id", id, "status", string(status))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"feedback": fb,
	})
}

func parseFeedbackStatus(status string) (domain.FeedbackStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(domain.FeedbackPending):
		return domain.FeedbackPending, true
	case string(domain.FeedbackReviewed):
		return domain.FeedbackReviewed, true
	case string(domain.FeedbackResolved):
		return domain.FeedbackResolved, true
	default:
		return "", false
	}
}
