package delivery

import (
	"net/http"
	"strings"

	"tasksync-backend/internal/auth/usecase"
	"tasksync-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer token into the signed-in account.
// EventSource clients cannot set headers, so the token may also be passed
// as the access_token query parameter.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		user, err := authUsecase.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status != http.StatusServiceUnavailable {
				status = http.StatusUnauthorized
			}
			c.JSON(status, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// RespondError writes err using the shared status and message mapping.
func RespondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
