// Package dashboard contains the admin dashboard endpoints
package dashboard

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginBody struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func DashLogin(c *gin.Context, d *internal.Deps) {
	var data loginBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	u, err := d.Dashboard.DashLogin(c.Request.Context(), c.ClientIP(), data.Username, data.Password)
	if err != nil {
		respond.Error(c, err, gin.H{"login": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    u,
		"login":   true,
	})
}
