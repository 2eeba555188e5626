package user

import (
	"bitwise74/account-api/app/pages"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserVerify is opened from the link in the verification email, so it
// answers with a page instead of JSON
func UserVerify(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	u, err := d.Accounts.VerifyEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		status := apperr.Status(err)
		if status == http.StatusInternalServerError {
			zap.L().Error("Failed to verify user", zap.Error(err), zap.String("requestID", requestID))
		}

		pages.Message(c, status, "Email verification", apperr.Message(err))
		return
	}

	zap.L().Info("User verified", zap.String("userID", u.ID), zap.String("requestID", requestID))

	pages.Message(c, http.StatusOK, "Email verification", "Email verified successfully")
}
