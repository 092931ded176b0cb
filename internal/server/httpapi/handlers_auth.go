package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

const (
	msgRegistered     = "User registered successfully. Please check your email for verification."
	msgResetAccepted  = "If the email exists, a password reset link has been sent"
	msgResendAccepted = "If the account exists and is unverified, a new code has been sent"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}{msgRegistered, user.ID})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.auth.RefreshTokens(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

// logout answers the same way whether or not the token was live.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.auth.LogoutAllDevices(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Revoked int64  `json:"revoked"`
	}{"Logged out from all devices", n})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, pair, err := s.auth.VerifyEmail(r.Context(), req.Email, req.Code, clientInfo(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string         `json:"message"`
		User    userResponse   `json:"user"`
		Tokens  *tokenResponse `json:"tokens,omitempty"`
	}{"Email verified successfully", newUserResponse(user), newTokenResponse(pair)})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.auth.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, msgResendAccepted)
}

// forgotPassword never tells the caller whether the account exists.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, msgResetAccepted)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.auth.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset. Please sign in again.")
}

// openResetLink bounces the link from the reset email into the app.
func (s *Server) openResetLink(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(s.opts.AppResetURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := target.Query()
	q.Set("token", chi.URLParam(r, "token"))
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.ChangePassword(r.Context(), currentUser(r).ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed. Please sign in again.")
}

func (s *Server) setPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.SetPasswordForSocialUser(r.Context(), currentUser(r).ID, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password set successfully")
}

func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(tokenKey).(string)
	claims, err := s.auth.Introspect(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Exp    int64  `json:"exp"`
	}{true, claims.UserID(), claims.Email, claims.ExpiresAt.Unix()})
}
