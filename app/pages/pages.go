// Package pages renders the few HTML pages that are opened from links in
// emails instead of being called by the frontend
package pages

import (
	"bitwise74/account-api/pkg/validators"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var files embed.FS

var tmpl = template.Must(template.ParseFS(files, "templates/*.html"))

type message struct {
	Title   string
	Message string
	OK      bool
}

// Message renders a page with a single line of text, green if status is 2xx
func Message(c *gin.Context, status int, title, msg string) {
	render(c, status, "message.html", message{
		Title:   title,
		Message: msg,
		OK:      status >= 200 && status < 300,
	})
}

// ResetForm renders the form that posts a new password back to
// /reset-password/:token
func ResetForm(c *gin.Context, token string) {
	render(c, http.StatusOK, "reset-password.html", gin.H{
		"Token":     token,
		"MinLength": validators.MinPasswordLength,
	})
}

func render(c *gin.Context, status int, name string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")

	if err := tmpl.ExecuteTemplate(c.Writer, name, data); err != nil {
		zap.L().Error("Failed to render page",
			zap.String("page", name),
			zap.Error(err),
			zap.String("requestID", c.GetString("requestID")))
	}
}
