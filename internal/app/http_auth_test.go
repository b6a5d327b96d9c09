package app

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpVerifySignInFlow(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "  Dana@Example.com ",
		"password":    testPassword,
		"displayName": "Dana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["devVerificationToken"].(string)
	require.NotEmpty(t, token)

	rec = h.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "dana@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/auth/verify-email", "", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "DANA@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode(t, rec)
	assert.Equal(t, "dana@example.com", session["email"])
	access := session["accessToken"].(string)

	rec = h.do(http.MethodGet, "/api/session", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["authenticated"])
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t, nil)
	h.user("Ana", "ana@example.com")

	rec := h.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "ANA@example.com",
		"password":    testPassword,
		"displayName": "Other Ana",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_EXISTS", errorCode(t, rec))
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	h := newHarness(t, nil)
	h.user("Ana", "ana@example.com")

	rec := h.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "ana@example.com", "password": "nope-nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/workspaces", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
}

func TestSessionWithoutTokenReadsAsSignedOut(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newHarness(t, nil)
	h.user("Ana", "ana@example.com")

	rec := h.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "ana@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := decode(t, rec)["refreshToken"].(string)

	rec = h.do(http.MethodPost, "/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, refresh, decode(t, rec)["refreshToken"])

	rec = h.do(http.MethodPost, "/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	h := newHarness(t, nil)
	ana := h.user("Ana", "ana@example.com")

	rec := h.do(http.MethodPost, "/api/session/logout", ana.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/workspaces", ana.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.user("Ana", "ana@example.com")

	rec := h.do(http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["devResetToken"].(string)
	require.NotEmpty(t, token)

	rec = h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "newPassword": "a-brand-new-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "ana@example.com", "password": "a-brand-new-password"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "newPassword": "yet-another-password"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RESET_FAILED", errorCode(t, rec))
}
