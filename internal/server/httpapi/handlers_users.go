package httpapi

import (
	"net/http"
)

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, err := s.auth.GetProfile(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(p))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profilePatchRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), currentUser(r).ID, req.patch())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) usernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	ok, err := s.auth.IsUsernameAvailable(r.Context(), username, currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Username  string `json:"username"`
		Available bool   `json:"available"`
	}{username, ok})
}
