package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chatflow/api/internal/config"
	"chatflow/api/internal/email"
	"chatflow/api/internal/export"
	"chatflow/api/internal/notify"
	"chatflow/api/internal/storage"
	"chatflow/api/internal/store"
	"chatflow/api/internal/util"
)

const testFrontend = "https://app.chatflow.test"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMailer struct {
	mu            sync.Mutex
	configured    bool
	invitations   []email.InvitationData
	notifications []email.NotificationData
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) Mode() config.EmailMode {
	if f.configured {
		return config.EmailModeSMTPPassword
	}
	return config.EmailModeDisabled
}

func (f *fakeMailer) SendVerificationEmail(context.Context, string, string, string) error { return nil }

func (f *fakeMailer) SendPasswordResetEmail(context.Context, string, string, string) error { return nil }

func (f *fakeMailer) SendInvitationEmail(_ context.Context, data email.InvitationData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invitations = append(f.invitations, data)
	return nil
}

func (f *fakeMailer) SendNotificationEmail(_ context.Context, data email.NotificationData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, data)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	puts    map[string][]byte
	removed []string
}

func (f *fakeObjects) Bucket() string { return "chatflow-test" }

func (f *fakeObjects) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Object{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = data
	return storage.Object{Key: key, Size: size, ContentType: contentType, PublicURL: "https://cdn.chatflow.test/" + key}, nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://files.chatflow.test/" + key + "?signature=abc", nil
}

func (f *fakeObjects) Check(context.Context) error { return nil }

func (f *fakeObjects) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.puts, key)
	f.removed = append(f.removed, key)
	return nil
}

type fakeExporter struct {
	requests []export.Request
}

func (f *fakeExporter) Export(_ context.Context, req export.Request) (*export.Result, error) {
	f.requests = append(f.requests, req)
	return &export.Result{Data: []byte("<html>transcript</html>"), Filename: "general.html", MimeType: "text/html; charset=utf-8"}, nil
}

type harness struct {
	t          *testing.T
	cfg        config.Config
	store      *memStore
	mailer     *fakeMailer
	dispatcher *notify.Dispatcher
	service    *Service
	handler    http.Handler
}

func testConfig() config.Config {
	return config.Config{
		Env:            config.EnvTest,
		JWTSecret:      "test-secret",
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		CORSOrigin:     testFrontend,
		FrontendURL:    testFrontend,
		APIURL:         testFrontend,
		MaxUploadBytes: 1 << 20,
		Version:        config.VersionConfig{Version: "1.4.0", Commit: "abc1234", AssetVersion: "asset42"},
	}
}

// newHarness wires a Service over the in-memory store. mutate may adjust
// the configuration and optional integrations before the server is built.
func newHarness(t *testing.T, mutate func(*config.Config, *Deps)) *harness {
	t.Helper()
	cfg := testConfig()
	memory := newMemStore()
	mailer := &fakeMailer{}
	dispatcher := notify.NewDispatcher(memory, mailer)
	deps := Deps{Store: memory, Mailer: mailer, Notifier: dispatcher}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	service := New(cfg, deps)
	return &harness{
		t:          t,
		cfg:        cfg,
		store:      memory,
		mailer:     mailer,
		dispatcher: dispatcher,
		service:    service,
		handler:    NewHTTPServer(service, cfg.CORSOrigin).Handler(),
	}
}

type testUser struct {
	ID    string
	Name  string
	Email string
	Token string
}

const testPassword = "correct-horse-battery"

// user creates a verified account and signs it in.
func (h *harness) user(name, address string) testUser {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(h.t, err)
	user := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     name,
		Email:           address,
		PasswordHash:    string(hash),
		IsEmailVerified: true,
	}
	require.NoError(h.t, h.store.CreateUser(context.Background(), user))
	session, err := h.service.issueSession(context.Background(), user)
	require.NoError(h.t, err)
	return testUser{ID: user.ID, Name: name, Email: address, Token: session.Token}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) upload(path, token, fileName string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(h.t, err)
	_, err = part.Write(content)
	require.NoError(h.t, err)
	require.NoError(h.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// workspace creates a workspace owned by owner and returns its ID and the
// ID of its default channel.
func (h *harness) workspace(owner testUser, name string) (string, string) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/workspaces", owner.Token, map[string]any{"name": name})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(h.t, rec)
	channel := body["defaultChannel"].(map[string]any)
	return body["id"].(string), channel["id"].(string)
}

// join adds user to the workspace with role, bypassing invitations.
func (h *harness) join(workspaceID string, user testUser, role string) {
	h.t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.addMemberLocked(workspaceID, user.ID, role)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, rec)["code"].(string)
	return code
}
