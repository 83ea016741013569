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

func TestGenerateAndValidateToken(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)

	token, err := auth.GenerateToken("staff-1", "role-9", "11111111")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.StaffID)
	assert.Equal(t, "role-9", claims.RoleID)
	assert.Equal(t, "11111111", claims.RestaurantID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTAuth("secret-a", time.Hour).GenerateToken("staff-1", "role-9", "")
	require.NoError(t, err)

	_, err = NewJWTAuth("secret-b", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth := NewJWTAuth("test-secret", time.Hour)

	// GenerateToken cannot produce a stale token (the constructor clamps
	// non-positive expiries), so sign one directly with a past deadline.
	claims := Claims{
		StaffID: "staff-1",
		RoleID:  "role-9",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    "restopos",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewJWTAuth("test-secret", time.Hour)

	router := gin.New()
	router.GET("/protected", auth.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"staff_id":      c.GetString("staff_id"),
			"role_id":       c.GetString("role_id"),
			"restaurant_id": c.GetString("restaurant_id"),
		})
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.GenerateToken("staff-1", "role-9", "11111111")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "staff-1")
		assert.Contains(t, w.Body.String(), "11111111")
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
