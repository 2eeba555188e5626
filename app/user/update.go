package user

import (
	"bitwise74/account-api/app/respond"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/account"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type updateBody struct {
	ID          string `json:"id" form:"id"`
	Name        string `json:"name" form:"name"`
	Username    string `json:"username" form:"username"`
	Email       string `json:"email" form:"email"`
	NewPassword string `json:"newPassword" form:"newPassword"`
	OldPassword string `json:"oldPassword" form:"oldPassword"`
}

func UserUpdate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data updateBody
	if err := c.ShouldBind(&data); err != nil {
		respond.BadBody(c, err)
		return
	}

	u, err := d.Accounts.UpdateProfile(c.Request.Context(), account.ProfileUpdate{
		ID:          data.ID,
		Name:        data.Name,
		Username:    data.Username,
		Email:       data.Email,
		NewPassword: data.NewPassword,
		OldPassword: data.OldPassword,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	zap.L().Debug("Profile updated", zap.String("userID", u.ID), zap.String("requestID", requestID))

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    u,
	})
}
