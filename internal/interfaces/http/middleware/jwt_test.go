package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/infrastructure/auth"
	"github.com/shopledger/backend/internal/infrastructure/config"
	"github.com/shopledger/backend/internal/infrastructure/logger"
	"github.com/shopledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:         "test-secret-key-at-least-32-chars",
		Issuer:         "test-issuer",
		AdminRole:      "admin",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestJWTAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()
	token, _, err := svc.GenerateAccessToken(userID, "seller")
	require.NoError(t, err)

	router := gin.New()
	router.Use(RequestID(), JWTAuth(JWTConfig{Validator: svc}))
	router.GET("/test", func(c *gin.Context) {
		id, ok := GetActorID(c)
		assert.True(t, ok)
		assert.Equal(t, userID, id)
		assert.Equal(t, userID.String(), logger.GetActorID(c.Request.Context()))
		assert.True(t, GetJWTClaims(c).HasRole("seller"))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuth_Rejects(t *testing.T) {
	svc := newTestJWTService()
	expired := auth.NewJWTService(config.JWTConfig{
		Secret:         "test-secret-key-at-least-32-chars",
		Issuer:         "test-issuer",
		AccessTokenTTL: -time.Minute,
	})
	expiredToken, _, err := expired.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeInvalidToken},
		{"not bearer", "Basic dXNlcjpwYXNz", dto.ErrCodeInvalidToken},
		{"garbage", "Bearer not.a.token", dto.ErrCodeInvalidToken},
		{"expired", "Bearer " + expiredToken, dto.ErrCodeTokenExpired},
	}

	router := gin.New()
	router.Use(JWTAuth(JWTConfig{Validator: svc}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	router := gin.New()
	router.Use(JWTAuth(JWTConfig{Validator: newTestJWTService(), SkipPaths: []string{"/health"}}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService()
	admin, _, err := svc.GenerateAccessToken(uuid.New(), "admin")
	require.NoError(t, err)
	user, _, err := svc.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(JWTConfig{Validator: svc}), RequireRole("admin"))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	for name, tc := range map[string]struct {
		token  string
		status int
	}{
		"admin":   {admin, http.StatusOK},
		"no role": {user, http.StatusForbidden},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestGetActorID_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := GetActorID(c)
	assert.False(t, ok)
	assert.Nil(t, GetJWTClaims(c))
}

func TestCallbackSecret(t *testing.T) {
	hash, err := auth.HashCallbackSecret("s3cret")
	require.NoError(t, err)
	verifier, err := auth.NewCallbackSecretVerifier(hash)
	require.NoError(t, err)

	router := gin.New()
	router.Use(CallbackSecret(verifier, nil))
	router.POST("/callback", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("matching secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", nil)
		req.Header.Set(CallbackSecretHeader, "s3cret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", nil)
		req.Header.Set(CallbackSecretHeader, "guess")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})
}
