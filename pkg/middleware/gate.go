package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// NewSecretGate only lets requests through that carry the shared API secret
// as a bearer token. Links that get mailed to users are opened from a
// browser, so paths matching public skip the check. An entry ending in "*"
// matches every path starting with the rest of it.
func NewSecretGate(secret string, public ...string) gin.HandlerFunc {
	want := []byte("Bearer " + secret)

	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path, public) {
			c.Next()
			return
		}

		got := []byte(c.GetHeader("Authorization"))
		if secret == "" || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Forbidden: Invalid API secret",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}

			continue
		}

		if path == p {
			return true
		}
	}

	return false
}
