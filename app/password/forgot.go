// Package password contains the forgot and reset password endpoints
package password

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type forgotBody struct {
	Identifier string `json:"identifier" form:"identifier"`
}

func PasswordForgot(c *gin.Context, d *internal.Deps) {
	var data forgotBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	if err := d.Recovery.RequestReset(c.Request.Context(), data.Identifier); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password reset link sent, please check your inbox.",
	})
}
