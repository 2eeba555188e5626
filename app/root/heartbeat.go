package root

import (
	"bitwise74/account-api/internal"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Heartbeat reports that the server is alive. The number of mails still
// waiting to be sent is exposed for monitoring.
func Heartbeat(c *gin.Context, d *internal.Deps) {
	if d.Mail != nil {
		c.Header("X-Mail-Pending", strconv.Itoa(int(d.Mail.Pending())))
	}

	c.Status(http.StatusOK)
}
