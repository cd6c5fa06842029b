package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

var errMissingToken = errors.New("missing or invalid token")

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	middlewareLogger := log.With("middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			response.AbortError(c, http.StatusUnauthorized, "invalid_token", errMissingToken)
			return
		}
		if !am.attachUser(c, tokenString) {
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the caller when a token is present. A token that is
// present but invalid is still rejected.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString != "" && !am.attachUser(c, tokenString) {
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) attachUser(c *gin.Context, tokenString string) bool {
	user, err := am.authService.CurrentUser(c.Request.Context(), tokenString)
	if err != nil {
		am.log.Debug("token rejected", "path", c.Request.URL.Path, "error", err)
		ae := response.FromError(err)
		if ae.Status == http.StatusNotFound || ae.Status >= http.StatusInternalServerError {
			response.AbortError(c, ae.Status, ae.Code, ae)
			return false
		}
		response.AbortError(c, http.StatusUnauthorized, "invalid_token", services.ErrInvalidToken)
		return false
	}
	ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
		UserID: user.ID,
		Email:  user.Email,
	})
	c.Request = c.Request.WithContext(ctx)
	return true
}

func extractTokenFromAll(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	// EventSource cannot set headers.
	return strings.TrimSpace(c.Query("token"))
}
