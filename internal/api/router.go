package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/handler"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/middleware"
)

// multipartOverhead leaves room for form fields next to the largest allowed file
const multipartOverhead = 1 << 20

func SetupRouter(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	reportHandler *handler.ReportHandler,
	chatHandler *handler.ChatHandler,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if !cfg.IsProduction() {
		r.Use(gin.Logger())
	}
	r.SetTrustedProxies(nil)
	r.MaxMultipartMemory = cfg.MaxFileSize + multipartOverhead
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Public routes
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth routes (Public)
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
	}

	// Protected API routes
	api := r.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		api.POST("/reports/upload", reportHandler.Upload)
		api.GET("/reports", reportHandler.List)
		api.GET("/reports/:id", reportHandler.Get)
		api.DELETE("/reports/:id", reportHandler.Delete)

		api.POST("/chat", chatHandler.Chat)
		api.GET("/chat/sessions", chatHandler.ListSessions)
		api.GET("/chat/sessions/:sessionId", chatHandler.GetSession)
		api.DELETE("/chat/sessions/:sessionId", chatHandler.DeleteSession)
		api.DELETE("/chat/sessions", chatHandler.ClearSessions)
	}

	return r
}
