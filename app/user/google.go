package user

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/account"
	"net/http"

	"github.com/gin-gonic/gin"
)

type googleBody struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
	Image string `json:"image" form:"image"`
}

// UserGoogleLogin is called by the frontend after Google sign in succeeded
// on its side. There is no password involved.
func UserGoogleLogin(c *gin.Context, d *internal.Deps) {
	var data googleBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	u, res, err := d.Accounts.GoogleUpsert(c.Request.Context(), data.Name, data.Email, data.Image)
	if err != nil {
		respond.Error(c, err)
		return
	}

	msg := "User created successfully"
	if res == account.UpsertUpdated {
		msg = "User updated successfully"
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msg,
		"status":  res,
		"user":    u,
	})
}
