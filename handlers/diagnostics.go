package handlers

import (
	"net/http"
	"time"

	"meridian/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TestGetHandler is a liveness probe for the front-end.
func TestGetHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API funcionando"})
}

// TestPostHandler echoes the posted JSON back with a server timestamp.
func TestPostHandler(c *gin.Context) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		getLogger(c).Warn("Invalid test payload", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid input: "+err.Error(), "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"received":  body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthHandler reports the latest background health snapshot.
func HealthHandler(c *gin.Context) {
	h := utils.GetHealthStatus()
	status := "ok"
	if (h.Redis != nil && !*h.Redis) || !h.ModelConfigured {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "health": h})
}
