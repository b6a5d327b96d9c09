package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"chatflow/api/internal/authpw"
)

func (s *Service) SignUp(ctx context.Context, emailAddress, password, displayName string) (map[string]any, error) {
	resp, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       emailAddress,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrEmailTaken):
			return nil, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrWeakPassword):
			return nil, badRequest("SIGNUP_FAILED", err.Error())
		}
		return nil, err
	}

	response := map[string]any{
		"userId":  resp.User.ID,
		"message": "Please check your email to verify your account",
	}
	if !s.emailConfigured() {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
		return response, nil
	}
	if err := s.mailer.SendVerificationEmail(ctx, resp.User.Email, resp.User.DisplayName, s.cfg.VerifyEmailURL(resp.VerificationToken)); err != nil {
		slog.ErrorContext(ctx, "verification email failed", "user_id", resp.User.ID, "error", err)
	}
	return response, nil
}

func (s *Service) SignIn(ctx context.Context, emailAddress, password string) (Session, error) {
	resp, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if resp.RequiresVerify {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
	}
	return s.issueSession(ctx, resp.User)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if err := s.passwords.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, authpw.ErrInvalidToken) {
			return badRequest("VERIFICATION_FAILED", err.Error())
		}
		return err
	}
	return nil
}

// RequestPasswordReset answers the same way for known and unknown
// addresses. Without email delivery the token is returned for development.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddress string) (map[string]any, error) {
	user, token, err := s.passwords.RequestPasswordReset(ctx, emailAddress)
	if err != nil {
		return nil, err
	}

	response := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	if token == "" {
		return response, nil
	}
	if !s.emailConfigured() {
		response["devResetToken"] = token
		return response, nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.DisplayName, s.cfg.ResetPasswordURL(token)); err != nil {
		slog.ErrorContext(ctx, "password reset email failed", "user_id", user.ID, "error", err)
	}
	return response, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.passwords.ResetPassword(ctx, authpw.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidToken) || errors.Is(err, authpw.ErrWeakPassword) {
			return badRequest("RESET_FAILED", err.Error())
		}
		return err
	}
	return nil
}
