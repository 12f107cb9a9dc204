package routes

import (
	"time"

	"meridian/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes registers the chat turn endpoint and its session endpoints.
func RegisterChatRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/chat", hb.ChatHandler)

	api := r.Group("/api")
	{
		api.POST("/chat", hb.ChatHandler)
	}

	sessions := r.Group("/chat/sessions")
	{
		sessions.GET("/:id", hb.GetSessionHandler)
		sessions.GET("/:id/widgets", hb.GetSessionWidgetsHandler)
		sessions.POST("/:id/actions", hb.WidgetActionHandler)
	}
}

// RegisterTestRoutes registers the front-end connectivity probes.
func RegisterTestRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.GET("/test", hb.TestGetHandler)
		api.POST("/test", hb.TestPostHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	RegisterChatRoutes(r, hb)
	RegisterTestRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
