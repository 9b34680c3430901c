package app

import (
	"bitwise74/cardio-api/app/admin"
	"bitwise74/cardio-api/app/auth"
	"bitwise74/cardio-api/app/prediction"
	"bitwise74/cardio-api/app/root"
	"bitwise74/cardio-api/app/user"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/middleware"
	"context"
	"net/http"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxBodySize = 64 << 10

// Routes that keep working while maintenance mode is on
var maintenanceExempt = []string{
	"/metrics",
	"/api/heartbeat",
	"/api/health",
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/session",
}

// NewRouter wires every route. ctx bounds the background goroutines of the
// middlewares.
func NewRouter(ctx context.Context, d *internal.Deps) *gin.Engine {
	router := gin.New()
	store := persist.NewMemoryStore(time.Minute)

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     d.Config.Host.CORS,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/api/heartbeat", "/metrics"},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{zap.String("requestID", c.GetString("requestID"))}
				if userID := c.GetString("userID"); userID != "" {
					fields = append(fields, zap.String("userID", userID))
				}
				return fields
			},
		}),
		metrics.Middleware(),
		middleware.BodySizeLimiter(maxBodySize),
		middleware.NewMaintenanceMiddleware(d.Settings, d.Auth.Sessions, maintenanceExempt...),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	rateLimiter := middleware.RateLimiterMiddleware(ctx, middleware.RateLimiterConfig{
		RequestsPerSecond: d.Config.Security.RateLimit,
		Burst:             d.Config.Security.RateLimit * 2,
		CleanupInterval:   time.Minute,
		TTL:               10 * time.Minute,
	})
	session := middleware.NewSessionMiddleware(d.Auth.Sessions, d.Secure())
	turnstile := middleware.NewTurnstileMiddleware(d.Config.Security.Turnstile)
	cacheFor := func(ttl time.Duration) gin.HandlerFunc {
		return cache.CacheByRequestURI(store, ttl)
	}

	// GET /metrics			-> Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	m := router.Group("/api", rateLimiter)
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/health		-> Status of the database, redis, storage and notification channels
		m.GET("/health", cacheFor(10*time.Second), func(c *gin.Context) { root.Health(c, d) })
	}

	a := m.Group("/auth")
	{
		// POST /api/auth/register		-> Creates an account and emails a verification code
		a.POST("/register", turnstile, func(c *gin.Context) { auth.Register(c, d) })

		// POST /api/auth/login		-> Logs in and sets the session cookies
		a.POST("/login", turnstile, func(c *gin.Context) { auth.Login(c, d) })

		// POST /api/auth/logout		-> Ends the current session
		a.POST("/logout", session, func(c *gin.Context) { auth.Logout(c, d) })

		// GET /api/auth/session		-> Returns the logged in user
		a.GET("/session", session, func(c *gin.Context) { auth.Session(c, d) })

		// POST /api/auth/verify-email	-> Confirms the email code and logs in
		a.POST("/verify-email", func(c *gin.Context) { auth.VerifyEmail(c, d) })

		// POST /api/auth/resend-code	-> Sends a new email or phone code
		a.POST("/resend-code", turnstile, func(c *gin.Context) { auth.ResendCode(c, d) })

		// POST /api/auth/forgot-password	-> Sends a password reset link
		a.POST("/forgot-password", turnstile, func(c *gin.Context) { auth.ForgotPassword(c, d) })

		// GET /api/auth/reset-password/validate	-> Checks a reset token before the form is shown
		a.GET("/reset-password/validate", func(c *gin.Context) { auth.ValidateResetToken(c, d) })

		// POST /api/auth/reset-password	-> Consumes a reset token and sets the new password
		a.POST("/reset-password", func(c *gin.Context) { auth.ResetPassword(c, d) })
	}

	u := m.Group("/users", session)
	{
		// GET /api/users/me		-> Returns the profile of the logged in user
		u.GET("/me", func(c *gin.Context) { user.Me(c, d) })

		// PATCH /api/users/me		-> Updates name, date of birth and gender
		u.PATCH("/me", func(c *gin.Context) { user.UpdateMe(c, d) })

		// DELETE /api/users/me		-> Deletes the account after a password check
		u.DELETE("/me", func(c *gin.Context) { user.DeleteMe(c, d) })

		// POST /api/users/me/password	-> Changes the password and logs out other sessions
		u.POST("/me/password", func(c *gin.Context) { user.ChangePassword(c, d) })

		// POST /api/users/me/phone	-> Sets a phone number and texts it a code
		u.POST("/me/phone", func(c *gin.Context) { user.SetPhone(c, d) })

		// POST /api/users/me/phone/verify	-> Confirms the phone code
		u.POST("/me/phone/verify", func(c *gin.Context) { user.VerifyPhone(c, d) })
	}

	p := m.Group("/predictions", session)
	{
		// POST /api/predictions		-> Scores and stores a prediction
		p.POST("", func(c *gin.Context) { prediction.Create(c, d) })

		// GET /api/predictions		-> Paginated history, ?risk= filters by level
		p.GET("", func(c *gin.Context) { prediction.List(c, d) })

		// GET /api/predictions/export	-> CSV of the whole history or a download URL
		p.GET("/export", func(c *gin.Context) { prediction.Export(c, d) })

		// GET /api/predictions/:id	-> Returns one prediction
		p.GET("/:id", func(c *gin.Context) { prediction.Get(c, d) })

		// DELETE /api/predictions/:id	-> Deletes one prediction
		p.DELETE("/:id", func(c *gin.Context) { prediction.Delete(c, d) })
	}

	ad := m.Group("/admin", session, middleware.RequireAdmin())
	{
		// GET /api/admin/stats		-> Dashboard counters
		ad.GET("/stats", cacheFor(30*time.Second), func(c *gin.Context) { admin.Stats(c, d) })

		// GET /api/admin/users		-> Users with search, filters and paging
		ad.GET("/users", func(c *gin.Context) { admin.ListUsers(c, d) })

		// GET /api/admin/users/:id	-> One user with counters
		ad.GET("/users/:id", func(c *gin.Context) { admin.GetUser(c, d) })

		// PATCH /api/admin/users/:id	-> Toggles admin and active flags, edits the name
		ad.PATCH("/users/:id", func(c *gin.Context) { admin.UpdateUser(c, d) })

		// DELETE /api/admin/users/:id	-> Deletes a user and everything they own
		ad.DELETE("/users/:id", func(c *gin.Context) { admin.DeleteUser(c, d) })

		// GET /api/admin/predictions	-> Everyone's predictions, ?risk= filters by level
		ad.GET("/predictions", func(c *gin.Context) { admin.ListPredictions(c, d) })

		// GET /api/admin/settings		-> All system settings
		ad.GET("/settings", func(c *gin.Context) { admin.ListSettings(c, d) })

		// PUT /api/admin/settings/:key	-> Changes one setting
		ad.PUT("/settings/:key", func(c *gin.Context) { admin.PutSetting(c, d) })

		// GET /api/admin/health		-> Detailed health with probe errors and runtime info
		ad.GET("/health", func(c *gin.Context) { admin.Health(c, d) })
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.GetString("requestID"),
		})
	})

	return router
}
