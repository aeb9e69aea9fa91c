package mw

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/Rakib-codee/harmonycare-backend/internal/apperr"
)

// AdminSecretHeader carries the shared secret for administrative routes.
const AdminSecretHeader = "X-Cleanup-Secret"

// AdminSecret rejects requests whose AdminSecretHeader does not match secret.
// An empty secret rejects everything.
func AdminSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abort(c, apperr.Forbidden("administrative access is disabled"))
			return
		}
		presented := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			abort(c, apperr.Forbidden("invalid administrative credential"))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}
