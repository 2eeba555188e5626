// Package user contains the endpoints that create, authenticate and update
// user accounts
package user

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/account"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerBody struct {
	Name     string `json:"name" form:"name"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Email    string `json:"email" form:"email"`
}

func UserRegister(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	u, err := d.Accounts.Register(c.Request.Context(), account.RegisterInput{
		Name:     data.Name,
		Username: data.Username,
		Password: data.Password,
		Email:    data.Email,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	zap.L().Info("User registered", zap.String("userID", u.ID), zap.String("requestID", requestID))

	c.JSON(http.StatusCreated, gin.H{
		"message": "Verification email sent. Please check your inbox.",
		"user":    u,
	})
}
