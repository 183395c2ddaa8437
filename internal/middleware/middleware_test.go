package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/internal/models"
	"github.com/socialhub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	token string
	user  *models.User
	err   error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != s.token {
		return nil, service.ErrInvalidToken
	}
	return s.user, nil
}

func newAuthRouter(auth Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUser(c).ID, "token": GetToken(c)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	auth := &stubAuthenticator{token: "abc", user: &models.User{ID: "u1"}}
	r := newAuthRouter(auth)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"raw token", "abc", http.StatusOK},
		{"bearer token", "Bearer abc", http.StatusOK},
		{"lowercase bearer", "bearer abc", http.StatusOK},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"u1","token":"abc"}`, w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_StoreFailure(t *testing.T) {
	r := newAuthRouter(&stubAuthenticator{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUser_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetUser(c))
	assert.Empty(t, GetToken(c))
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("2.2.2.2"))
	assert.Equal(t, 2, limiter.Clients())
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLoggerMiddlewares(t *testing.T) {
	require.NoError(t, InitLogger(t.TempDir()))

	r := gin.New()
	r.Use(RequestLoggerMiddleware(), AuditLoggerMiddleware())
	r.POST("/users/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/login?x=1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "-", maskToken(""))
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "***456789", maskToken("abcdefghijkl0123456789"))
}
