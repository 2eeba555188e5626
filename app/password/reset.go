package password

import (
	"bitwise74/account-api/app/pages"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const pageTitle = "Reset password"

type resetBody struct {
	NewPassword string `json:"newPassword" form:"newPassword"`
}

// PasswordResetForm serves the reset form if the token in the path is still
// valid. Nothing is modified.
func PasswordResetForm(c *gin.Context, d *internal.Deps) {
	token := c.Param("token")

	if err := d.Recovery.CheckReset(c.Request.Context(), token); err != nil {
		failPage(c, err)
		return
	}

	pages.ResetForm(c, token)
}

func PasswordReset(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data resetBody
	if err := c.ShouldBind(&data); err != nil {
		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

		pages.Message(c, http.StatusBadRequest, pageTitle, "Invalid request body")
		return
	}

	if err := d.Recovery.ConsumeReset(c.Request.Context(), c.Param("token"), data.NewPassword); err != nil {
		failPage(c, err)
		return
	}

	pages.Message(c, http.StatusOK, pageTitle, "Password reset successful! You can now log in.")
}

func failPage(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Password reset failed", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
	}

	pages.Message(c, status, pageTitle, apperr.Message(err))
}
