package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) handleAuthSignUp(c *gin.Context) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.SignUp(c.Request.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, payload)
}

func (s *HTTPServer) handleAuthSignIn(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleAuthVerifyEmail(c *gin.Context) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.VerifyEmail(c.Request.Context(), body.Token); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

func (s *HTTPServer) handleAuthRequestReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.RequestPasswordReset(c.Request.Context(), body.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, payload)
}

func (s *HTTPServer) handleAuthResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ResetPassword(c.Request.Context(), body.Token, body.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// handleSession reports whether the bearer token is usable. It never
// fails; a bad token reads as signed out.
func (s *HTTPServer) handleSession(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		writeJSON(c, http.StatusOK, gin.H{"authenticated": false, "userName": nil})
		return
	}
	session, err := s.service.SessionFromToken(c.Request.Context(), token)
	if err != nil {
		writeJSON(c, http.StatusOK, gin.H{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"authenticated": true,
		"userId":        session.UserID,
		"userName":      session.UserName,
		"email":         session.Email,
		"expiresAt":     session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleSessionRefresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleSessionLogout(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(c.Request, &body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	_ = s.service.Logout(c.Request.Context(), sessionFrom(c), body.RefreshToken)
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func sessionPayload(session Session) gin.H {
	return gin.H{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"email":        session.Email,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}
