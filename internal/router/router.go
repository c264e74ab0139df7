package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/handler"
	"github.com/smarttest/smarttest-backend/internal/logger"
	"github.com/smarttest/smarttest-backend/internal/middleware"
	"github.com/smarttest/smarttest-backend/internal/response"
	"github.com/smarttest/smarttest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Test   *handler.TestHandler
	Admin  *handler.AdminHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(logger.GinMiddleware(log, response.ContextKeyRequestID))
	router.Use(middleware.Brotli(5))

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/login", loginLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)

		auth.POST("/student/logout",
			middleware.RequireStudentJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.StudentLogout,
		)
		auth.GET("/student/me",
			middleware.RequireStudentJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.StudentMe,
		)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/lobby", handlers.Test.GetLobby)

		test := studentAPI.Group("/tests/:subject_id/:test_type")
		test.GET("/eligibility", handlers.Test.Eligibility)
		test.POST("/start", handlers.Test.Start)
		test.GET("/resume", handlers.Test.Resume)
		test.GET("/state", handlers.Test.State)
		test.PUT("/answers/:index", handlers.Test.Answer)
		test.PUT("/position", handlers.Test.Navigate)
		test.PUT("/marks/:index", handlers.Test.ToggleMark)
		test.PUT("/autosave", handlers.Test.Autosave)
		test.POST("/submit", handlers.Test.Submit)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/tests/:subject_id/:test_type/stream", handlers.WS.TestStream)
	}

	// ─── 4. Admin Group (JWT, scoped to the admin's school) ────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.NoStore())
	{
		adminAPI.GET("/retakes", handlers.Admin.ListRetakes)
		adminAPI.PUT("/retakes", handlers.Admin.SetRetake)
		adminAPI.DELETE("/progress", handlers.Admin.ClearProgress)
		adminAPI.POST("/students/:id/reset-session", handlers.Admin.ResetStudentSession)

		adminAPI.GET("/durations", handlers.Admin.ListDurations)
		adminAPI.PUT("/durations", handlers.Admin.SetDuration)

		adminAPI.GET("/results", handlers.Admin.ListResults)
		adminAPI.GET("/leaderboard", handlers.Admin.Leaderboard)
	}

	return router
}
