package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) socialSignIn(p models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req socialRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		id, err := s.identities.Verify(r.Context(), p, req.IDToken)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		_, pair, err := s.auth.SocialSignIn(r.Context(), id, clientInfo(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTokenResponse(pair))
	}
}

func (s *Server) linkProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := models.ParseProvider(chi.URLParam(r, "provider"))
	if !ok || !p.IsSocial() {
		s.writeError(w, r, common.ErrInvalidProvider)
		return
	}
	var req socialRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.identities.Verify(r.Context(), p, req.IDToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.auth.LinkProvider(r.Context(), currentUser(r).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("%s account linked successfully", p.Title()))
}

func (s *Server) unlinkProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if err := s.auth.UnlinkProvider(r.Context(), currentUser(r).ID, name); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := models.ParseProvider(name)
	writeMessage(w, http.StatusOK, fmt.Sprintf("%s account unlinked successfully", p.Title()))
}

func (s *Server) linkedAccounts(w http.ResponseWriter, r *http.Request) {
	links, err := s.auth.ListLinkedAccounts(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLinkedAccounts(links))
}
