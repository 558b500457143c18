package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tobbedansen/utils"
)

// Authenticate requires a valid admin token in the Authorization header,
// with or without a "Bearer " prefix, and stores the admin id as "adminId".
func Authenticate(tokens *utils.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
			return
		}

		adminID, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
			return
		}

		c.Set("adminId", adminID)
		c.Next()
	}
}
