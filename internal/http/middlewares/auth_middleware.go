package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/expensehub/internal/actorctx"
	"github.com/geocoder89/expensehub/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
}

func NewAuthMiddleware(tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth rejects the request with 401 unless it carries a valid bearer
// token. It does not check ownership of the requested resource.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithError(c, http.StatusUnauthorized, "unauthorized", message)
}

// abortWithError writes the same error envelope the handlers use.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// UserIDFromContext returns the identity set by RequireAuth.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
