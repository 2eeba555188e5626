package user

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

func UserList(c *gin.Context, d *internal.Deps) {
	users, err := d.Accounts.List(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
