package user

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

type fetchBody struct {
	Identifier string `json:"identifier" form:"identifier"`
	// Older clients only send the email
	Email string `json:"email" form:"email"`
}

func UserFetch(c *gin.Context, d *internal.Deps) {
	var data fetchBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	identifier := data.Identifier
	if identifier == "" {
		identifier = data.Email
	}

	u, err := d.Accounts.Lookup(c.Request.Context(), identifier)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}
