package app

import (
	"bitwise74/account-api/app/dashboard"
	"bitwise74/account-api/app/password"
	"bitwise74/account-api/app/root"
	"bitwise74/account-api/app/user"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/middleware"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type RouterOpts struct {
	APISecret   string
	CORSOrigins []string
	// Proxies whose X-Forwarded-For is used as the client IP. Nil trusts
	// none, so the IP is always the one of the connecting socket.
	TrustedProxies []string
	// Requests per second per client IP, 0 disables the limit
	RateLimit int
	// Response cache for GET /users, an in-memory one is used when nil
	Cache persist.CacheStore
}

// publicPaths are opened from links in emails and can't carry the API secret
var publicPaths = []string{"/verify", "/verifyEmail", "/reset-password*"}

// NewEngine registers every route on a new gin engine backed by d
func NewEngine(d *internal.Deps, o RouterOpts) *gin.Engine {
	router := gin.New()

	// Login limits are keyed on ClientIP, a header can't be allowed to pick it
	if err := router.SetTrustedProxies(o.TrustedProxies); err != nil {
		zap.L().Error("Invalid trusted proxies, trusting none", zap.Error(err))
		router.SetTrustedProxies(nil)
	}

	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}

	if o.Cache == nil {
		o.Cache = persist.NewMemoryStore(time.Minute)
	}

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     o.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: !containsWildcard(o.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true

	if o.RateLimit > 0 {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: o.RateLimit,
			Burst:             o.RateLimit * 2,
		})
		router.Use(rl.Handler())
	}

	router.Use(
		middleware.NewSecretGate(o.APISecret, publicPaths...),
		middleware.BodySizeLimiter(1<<20),
	)

	// HEAD /heartbeat		-> Used to check if the server is alive
	router.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

	// POST /CreateAcc		-> Registers a new user and sends a verification mail
	router.POST("/CreateAcc", func(c *gin.Context) { user.UserRegister(c, d) })

	// POST /Login			-> Logs in a user with their username and password
	router.POST("/Login", func(c *gin.Context) { user.UserLogin(c, d) })

	// POST /google-login		-> Creates or updates a user that signed in with Google
	router.POST("/google-login", func(c *gin.Context) { user.UserGoogleLogin(c, d) })

	// POST /getUserData		-> Returns a user by their email or username
	router.POST("/getUserData", func(c *gin.Context) { user.UserFetch(c, d) })

	// POST /updateProfile		-> Updates the profile of a user
	router.POST("/updateProfile", func(c *gin.Context) { user.UserUpdate(c, d) })

	// GET /verify			-> Verifies a user's email, opened from the verification mail
	router.GET("/verify", func(c *gin.Context) { user.UserVerify(c, d) })
	router.GET("/verifyEmail", func(c *gin.Context) { user.UserVerify(c, d) })

	// GET /users			-> Lists every user
	router.GET("/users", cache.CacheByRequestURI(o.Cache, 5*time.Second), func(c *gin.Context) { user.UserList(c, d) })

	// POST /forgot-password	-> Sends a password reset link
	router.POST("/forgot-password", func(c *gin.Context) { password.PasswordForgot(c, d) })

	// GET /reset-password/:token	-> Serves the password reset form
	router.GET("/reset-password/:token", func(c *gin.Context) { password.PasswordResetForm(c, d) })

	// POST /reset-password/:token	-> Sets a new password
	router.POST("/reset-password/:token", func(c *gin.Context) { password.PasswordReset(c, d) })

	// POST /dashLogin		-> Logs in to the admin dashboard
	router.POST("/dashLogin", func(c *gin.Context) { dashboard.DashLogin(c, d) })

	// POST /dashGetPass		-> Mails a new dashboard password to the admin
	router.POST("/dashGetPass", func(c *gin.Context) { dashboard.DashRotatePassword(c, d) })

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}

	return false
}
