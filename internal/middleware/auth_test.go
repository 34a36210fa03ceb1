package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(subject, name string) Claims {
	return Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func setupAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), AuthMiddleware(NewTokenVerifier(testSecret)))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "name": c.GetString("displayName")})
	})
	return r
}

func TestAuthMiddlewareAcceptsBearer(t *testing.T) {
	router := setupAuthRouter()
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u1", "Ana"))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","name":"Ana"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	router := setupAuthRouter()
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u2", ""))

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u2","name":"User"}`, rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	router := setupAuthRouter()
	expired := validClaims("u1", "Ana")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad secret":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("u1", "Ana")),
		"expired":      "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"no subject":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("", "Ana")),
		"alg none":     "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("u1", "Ana")),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
