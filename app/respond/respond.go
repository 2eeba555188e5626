// Package respond writes error responses in the shape every JSON endpoint uses
package respond

import (
	"bitwise74/account-api/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes err as {"error": ..., "requestID": ...} with the status its
// kind maps to. Internal errors are logged, their cause is never sent back.
// Keys in extra are merged into the body.
func Error(c *gin.Context, err error, extra ...gin.H) {
	requestID := c.GetString("requestID")
	status := apperr.Status(err)

	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("requestID", requestID))
	}

	body := gin.H{
		"error":     apperr.Message(err),
		"requestID": requestID,
	}

	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}

	c.AbortWithStatusJSON(status, body)
}

// BadBody is written when the request body can't be bound
func BadBody(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":     "Invalid request body",
		"requestID": requestID,
	})
}
