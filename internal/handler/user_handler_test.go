package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/internal/config"
	"github.com/socialhub/internal/handler"
	"github.com/socialhub/internal/middleware"
	"github.com/socialhub/internal/repository"
	"github.com/socialhub/internal/service"
	"github.com/socialhub/internal/storage"
	"github.com/socialhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	mailer *testutil.RecordingMailer
	images *storage.LocalStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	mailer := &testutil.RecordingMailer{}

	svc := service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewContentRepository(db),
		service.NewTokenService(config.JWTConfig{Secret: "test-secret"}),
		mailer,
		images,
		&testutil.RecordingPublisher{},
		testutil.StaticThrottle(true),
		"http://localhost:3000",
	)

	router := gin.New()
	handler.NewUserHandler(svc, 1).RegisterRoutes(router, middleware.AuthMiddleware(svc))

	return &testServer{router: router, mailer: mailer, images: images}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(t, req)
}

func (s *testServer) doMultipart(t *testing.T, method, path string, fields map[string]string, filename, token string) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (int, apiResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// signup registers, confirms and logs in username, returning its id and token
func (s *testServer) signup(t *testing.T, username string) (string, string) {
	t.Helper()
	email := username + "@x.com"

	code, _ := s.do(t, http.MethodPost, "/users", gin.H{"username": username, "email": email, "password": "p1"}, "")
	require.Equal(t, http.StatusCreated, code)

	confirm := s.mailer.LastLinkToken(email, "/users/confirm/")
	code, _ = s.do(t, http.MethodGet, "/users/confirm/"+confirm, nil, "")
	require.Equal(t, http.StatusCreated, code)

	code, resp := s.do(t, http.MethodPost, "/users/login", gin.H{"email": email, "password": "p1"}, "")
	require.Equal(t, http.StatusOK, code)

	var result service.LoginResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	return result.UserID, result.Token
}

func TestUserHandler_RegisterConfirmLogin(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/users", gin.H{"username": "alice", "email": "alice@x.com", "password": "p1"}, "")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "User created", resp.Message)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "alice", created["username"])
	assert.Equal(t, false, created["confirmed"])
	assert.NotContains(t, created, "password")
	assert.NotContains(t, created, "PasswordHash")
	assert.NotContains(t, created, "tokens")

	code, resp = s.do(t, http.MethodPost, "/users/login", gin.H{"email": "alice@x.com", "password": "p1"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email must be confirmed first", resp.Message)

	token := s.mailer.LastLinkToken("alice@x.com", "/users/confirm/")
	code, resp = s.do(t, http.MethodGet, "/users/confirm/"+token, nil, "")
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "User confirmed", resp.Message)

	code, resp = s.do(t, http.MethodPost, "/users/login", gin.H{"email": "alice@x.com", "password": "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Incorrect user/password", resp.Message)

	code, resp = s.do(t, http.MethodPost, "/users/login", gin.H{"email": "alice@x.com", "password": "p1"}, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Welcome alice", resp.Message)

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.NotEmpty(t, result["token"])
	assert.NotEmpty(t, result["userId"])
}

func TestUserHandler_RegisterValidation(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing username", gin.H{"email": "b@x.com", "password": "p"}},
		{"missing password", gin.H{"username": "bob", "email": "b@x.com"}},
		{"bad email", gin.H{"username": "bob", "email": "nope", "password": "p"}},
		{"username taken", gin.H{"username": "alice", "email": "b@x.com", "password": "p"}},
		{"email taken", gin.H{"username": "bob", "email": "alice@x.com", "password": "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := s.do(t, http.MethodPost, "/users", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestUserHandler_InvalidConfirmToken(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodGet, "/users/confirm/garbage", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid or expired token", resp.Message)
}

func TestUserHandler_Logout(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup(t, "alice")

	code, _ := s.do(t, http.MethodGet, "/users/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := s.do(t, http.MethodGet, "/users/logout", nil, token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "You have been logged out", resp.Message)

	code, _ = s.do(t, http.MethodGet, "/users/logout", nil, token)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUserHandler_ListGetSearch(t *testing.T) {
	s := newTestServer(t)
	aliceID, _ := s.signup(t, "alice")
	s.signup(t, "malice")
	s.signup(t, "bob")

	code, resp := s.do(t, http.MethodGet, "/users", nil, "")
	require.Equal(t, http.StatusOK, code)
	var all []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Len(t, all, 3)

	code, resp = s.do(t, http.MethodGet, "/users/"+aliceID, nil, "")
	require.Equal(t, http.StatusOK, code)
	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, []interface{}{}, profile["following"])

	code, resp = s.do(t, http.MethodGet, "/users/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "user not found", resp.Message)

	code, resp = s.do(t, http.MethodGet, "/users/username/lice", nil, "")
	require.Equal(t, http.StatusOK, code)
	var found []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &found))
	assert.Len(t, found, 2)
}

func TestUserHandler_FollowUnfollow(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.signup(t, "alice")
	bobID, _ := s.signup(t, "bob")

	code, resp := s.do(t, http.MethodPut, "/users/follow/"+bobID, nil, aliceToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User alice is now following bob", resp.Message)

	code, _ = s.do(t, http.MethodPut, "/users/follow/"+aliceID, nil, aliceToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPut, "/users/follow/missing", nil, aliceToken)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(t, http.MethodGet, "/users/"+bobID, nil, "")
	require.Equal(t, http.StatusOK, code)
	var profile struct {
		Followers []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"followers"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	require.Len(t, profile.Followers, 1)
	assert.Equal(t, "alice", profile.Followers[0].Username)

	code, resp = s.do(t, http.MethodPut, "/users/unfollow/"+bobID, nil, aliceToken)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User alice no longer follows bob", resp.Message)
}

func TestUserHandler_UpdateWithImage(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup(t, "alice")

	code, resp := s.doMultipart(t, http.MethodPatch, "/users",
		map[string]string{"bio": "painter", "email": "evil@x.com"}, "me.png", token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User alice updated", resp.Message)

	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "painter", updated["bio"])
	assert.Equal(t, "alice@x.com", updated["email"])
	firstImage, _ := updated["image"].(string)
	assert.NotEmpty(t, firstImage)

	code, resp = s.doMultipart(t, http.MethodPatch, "/users", map[string]string{"title": "artist"}, "", token)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, firstImage, updated["image"])

	code, _ = s.doMultipart(t, http.MethodPatch, "/users", nil, "script.sh", token)
	assert.Equal(t, http.StatusBadRequest, code)

	names, err := s.images.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{firstImage}, names)
}

func TestUserHandler_PasswordRecovery(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	code, resp := s.do(t, http.MethodGet, "/users/recoverPassword/alice@x.com", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A recovering email was sent to your email address", resp.Message)

	token := s.mailer.LastLinkToken("alice@x.com", "/users/resetPassword/")
	code, resp = s.do(t, http.MethodPost, "/users/resetPassword/"+token, gin.H{"password": "p2"}, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Your password has been updated", resp.Message)

	code, _ = s.do(t, http.MethodPost, "/users/login", gin.H{"email": "alice@x.com", "password": "p2"}, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/users/resetPassword/garbage", gin.H{"password": "p3"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserHandler_DeleteAccount(t *testing.T) {
	s := newTestServer(t)
	aliceID, token := s.signup(t, "alice")

	code, resp := s.do(t, http.MethodDelete, "/users", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User alice deleted", resp.Message)

	code, _ = s.do(t, http.MethodGet, "/users/"+aliceID, nil, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodDelete, "/users", nil, token)
	assert.Equal(t, http.StatusUnauthorized, code)
}
