package dashboard

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashRotatePassword mails a freshly generated dashboard password to the admin
func DashRotatePassword(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	if err := d.Dashboard.RotateAdminPassword(c.Request.Context()); err != nil {
		respond.Error(c, err)
		return
	}

	zap.L().Info("Dashboard password rotated", zap.String("requestID", requestID))

	c.JSON(http.StatusOK, gin.H{
		"message": "New password sent successfully, check your email",
	})
}
