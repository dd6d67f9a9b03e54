package middleware

import (
	"crypto/subtle"
	"errors"

	"policy-qa-service/utils"

	"github.com/gin-gonic/gin"
)

// ErrAuthentication is attached to the gin context when a request presents
// a missing or wrong bearer token.
var ErrAuthentication = errors.New("invalid api key")

// InvalidAPIKeyDetail is the 401 response detail.
const InvalidAPIKeyDetail = "Invalid API Key"

// RequireAPIKey admits requests whose bearer token equals apiKey byte for byte.
// An empty apiKey admits nobody.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		token := utils.ExtractBearerToken(c.GetHeader("Authorization"))
		if len(expected) == 0 || token == "" || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			_ = c.Error(ErrAuthentication)
			utils.RespondWithUnauthorized(c, InvalidAPIKeyDetail)
			return
		}
		c.Next()
	}
}
