package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptwn/booking-backend/pkg/jwt"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-access-secret-key-123456789", "uptwn-auth", time.Hour)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	userID := uuid.New()
	token, err := jwtService.GenerateAccessToken(userID, "ada@example.com", []string{"user"}, true)
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		require.True(t, exists)
		c.JSON(http.StatusOK, gin.H{"user_id": userCtx.UserID, "email": userCtx.Email})
	})

	w := doRequest(router, "GET", "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), "ada@example.com")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()
	expired := jwt.NewService("test-access-secret-key-123456789", "uptwn-auth", -time.Minute)

	expiredToken, err := expired.GenerateAccessToken(uuid.New(), "", []string{"user"}, true)
	require.NoError(t, err)
	inactiveToken, err := jwtService.GenerateAccessToken(uuid.New(), "", []string{"user"}, false)
	require.NoError(t, err)
	foreignToken, err := jwt.NewService("some-other-secret", "uptwn-auth", time.Hour).
		GenerateAccessToken(uuid.New(), "", []string{"user"}, true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreignToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + expiredToken, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"inactive user", "Bearer " + inactiveToken, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/protected", AuthMiddleware(jwtService, testLogger()), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
			})

			w := doRequest(router, "GET", "/protected", tt.header)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.NotContains(t, w.Body.String(), "should not reach here")
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	userToken, err := jwtService.GenerateAccessToken(uuid.New(), "", []string{"user"}, true)
	require.NoError(t, err)
	adminToken, err := jwtService.GenerateAccessToken(uuid.New(), "", []string{"user", "admin"}, true)
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/admin", AuthMiddleware(jwtService, testLogger()), RequireRole("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/no-auth", RequireRole("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	t.Run("User Lacks Role", func(t *testing.T) {
		w := doRequest(router, "GET", "/admin", "Bearer "+userToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")
	})

	t.Run("Admin Passes", func(t *testing.T) {
		w := doRequest(router, "GET", "/admin", "Bearer "+adminToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Without Auth Middleware", func(t *testing.T) {
		w := doRequest(router, "GET", "/no-auth", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
	})
}

func TestGetUserContext_WrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(UserContextKey, "not a user context")

	_, ok := GetUserContext(c)
	assert.False(t, ok)
}
