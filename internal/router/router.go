package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/config"
	"github.com/jorabeknazarmatov/test-platform/internal/handler"
	"github.com/jorabeknazarmatov/test-platform/internal/middleware"
	"github.com/jorabeknazarmatov/test-platform/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session   *handler.SessionHandler
	Directory *handler.DirectoryHandler
	WS        *handler.WSHandler
}

// SetupRouter configures the kiosk routes. otpLimiter throttles OTP checks.
func SetupRouter(
	handlers *Handlers,
	otpLimiter *middleware.RateLimiter,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs first so every response, including errors, carries metadata.
	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.Brotli(middleware.DefaultBrotliMinLength))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── Session ───────────────────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(middleware.NoStore())
	{
		sessionAPI.POST("/verify", otpLimiter.Middleware(), handlers.Session.VerifyOTP)
		sessionAPI.POST("/start", handlers.Session.Start)
		sessionAPI.GET("/state", handlers.Session.State)
		sessionAPI.POST("/answers", handlers.Session.SelectAnswer)
		sessionAPI.POST("/next", handlers.Session.Next)
		sessionAPI.POST("/previous", handlers.Session.Previous)
		sessionAPI.POST("/goto", handlers.Session.GoTo)
		sessionAPI.POST("/finish", handlers.Session.Finish)
		sessionAPI.POST("/reset", handlers.Session.Reset)
	}

	// ─── Directory ─────────────────────────────────────────────────────
	directoryAPI := router.Group("/api/v1/directory")
	{
		directoryAPI.GET("/groups", handlers.Directory.ListGroups)
		directoryAPI.GET("/groups/:id/students", handlers.Directory.ListStudents)
		directoryAPI.GET("/subjects", handlers.Directory.ListSubjects)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	return router
}
