package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a staff session token. RestaurantID is the lowest
// precedence source for tenant resolution; StaffID and RoleID feed the
// module entitlement resolver.
type Claims struct {
	StaffID      string `json:"staff_id"`
	RoleID       string `json:"role_id"`
	RestaurantID string `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth issues and validates staff session tokens.
type JWTAuth struct {
	secret []byte
	expiry time.Duration
}

func NewJWTAuth(secret string, expiry time.Duration) *JWTAuth {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &JWTAuth{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateToken generates a JWT token for a staff session.
func (a *JWTAuth) GenerateToken(staffID, roleID, restaurantID string) (string, error) {
	claims := Claims{
		StaffID:      staffID,
		RoleID:       roleID,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "restopos",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates and parses a JWT token.
func (a *JWTAuth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Middleware validates the bearer token and exposes the session claims to
// downstream handlers, including the restaurant_id claim used as the lowest
// precedence tenant identifier.
func (a *JWTAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := a.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("staff_id", claims.StaffID)
		c.Set("role_id", claims.RoleID)
		c.Set("restaurant_id", claims.RestaurantID)
		c.Set("claims", claims)

		c.Next()
	}
}
