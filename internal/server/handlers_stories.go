package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

type storyResponse struct {
	domain.Story
	CoverURL string `json:"coverUrl,omitempty"`
}

func (s *Server) storyPayload(r *http.Request, story domain.Story) storyResponse {
	return storyResponse{Story: story, CoverURL: s.app.CoverURL(r.Context(), story)}
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stories, err := s.app.PublishedStories()
	if err != nil {
		writeAppError(w, err)
		return
	}
	items := make([]storyResponse, 0, len(stories))
	for _, story := range stories {
		items = append(items, s.storyPayload(r, story))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// /api/stories/{id}
func (s *Server) handleStoryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stories/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	story, err := s.app.StoryByID(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	// Unpublished stories stay private to their owner and admins.
	if !story.Published {
		user, ok := s.authorize(r)
		if !ok || (user.ID != story.OwnerID && !user.IsAdmin) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.storyPayload(r, story))
}

type generateRequest struct {
	Title  string `json:"title,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerateStory(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.generateLimiter, "generate|"+user.ID, "too many generation requests") {
		s.audit(r, "stories.generate", "rate_limited", "user_id", user.ID)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	story, err := s.app.GenerateStory(r.Context(), user, req.Title, req.Genre, req.Prompt)
	if err != nil {
		s.audit(r, "stories.generate", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "stories.generate", "success", "user_id", user.ID, "story_id", story.ID)
	writeJSON(w, http.StatusCreated, s.storyPayload(r, story))
}
