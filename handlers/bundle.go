package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all the endpoint handlers into one struct.
type HandlerBundle struct {
	// Chat endpoints
	ChatHandler gin.HandlerFunc

	// Session endpoints
	GetSessionHandler        gin.HandlerFunc
	GetSessionWidgetsHandler gin.HandlerFunc
	WidgetActionHandler      gin.HandlerFunc

	// Diagnostics
	TestGetHandler  gin.HandlerFunc
	TestPostHandler gin.HandlerFunc
	HealthHandler   gin.HandlerFunc
}

// NewHandlerBundle assembles the bundle from a chat handler.
func NewHandlerBundle(ch *ChatHandler) *HandlerBundle {
	return &HandlerBundle{
		ChatHandler:              ch.HandleChat,
		GetSessionHandler:        ch.GetSession,
		GetSessionWidgetsHandler: ch.GetSessionWidgets,
		WidgetActionHandler:      ch.HandleWidgetAction,
		TestGetHandler:           TestGetHandler,
		TestPostHandler:          TestPostHandler,
		HealthHandler:            HealthHandler,
	}
}
