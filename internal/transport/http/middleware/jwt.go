package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mindmate/internal/pkg/jwtutil"
	"mindmate/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization scheme")
	errBadToken      = errors.New("invalid or expired token")
)

// AuthJWT rejects requests without a valid bearer token.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
			c.Abort()
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalJWT attaches the caller's identity when a valid token is present and
// lets anonymous requests through. The crisis check is used before sign-in.
func OptionalJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := bearerClaims(c, secret); err == nil {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, secret string) (*jwtutil.Claims, error) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return nil, errMissingHeader
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return nil, errBadScheme
	}

	claims, err := jwtutil.ParseToken(secret, strings.TrimSpace(strings.TrimPrefix(authHeader, prefix)))
	if err != nil {
		return nil, errBadToken
	}
	return claims, nil
}

func setIdentity(c *gin.Context, claims *jwtutil.Claims) {
	c.Set(ContextUserIDKey, claims.UserID)
	c.Set(ContextUsernameKey, claims.Username)
}
