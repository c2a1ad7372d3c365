package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/GarethPark/story-subscription-sub001/internal/imagefetch"
	"github.com/GarethPark/story-subscription-sub001/internal/util"
)

// handleImage relays a static image from the configured origin. Anything
// that cannot be served, bad names and upstream failures alike, comes back
// as 404 so the relay does not reveal origin details.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/images/")
	if !imagefetch.ValidFilename(name) {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.imageOrigin+"/"+name, nil)
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	resp, err := s.imageClient.Do(req)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("image relay fetch failed", "name", name, "error", err)
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	// Image names are content-addressed at the origin, so they never change
	// under a given name.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}
