package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, r.URL.Path+"|"+clientIP(r), "too many signup attempts") {
		s.audit(r, "auth.signup", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Email, req.Password, req.Name)
	if err != nil {
		s.audit(r, "auth.signup", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.signup", "success", "user_id", user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, r.URL.Path+"|"+clientIP(r), "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		// Credential failures come back as 401 rather than echoing which
		// part was wrong.
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// handleLogout ends the session and sends the browser back to the site.
// It is a navigation target, so it answers GET as well as POST and always
// redirects, even when no session was present.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, hadSession := s.sessionToken(r)
	if hadSession {
		if err := s.app.Logout(token); err != nil {
			s.audit(r, "auth.logout", "fail", "reason", err.Error())
		} else {
			s.audit(r, "auth.logout", "success")
		}
	}
	s.clearSessionCookie(w)
	target := s.baseURL + "/"
	if !hadSession {
		target = s.baseURL + "/login"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
