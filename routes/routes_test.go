package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"meridian/handlers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func named(name string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, name) }
}

func bundle() *handlers.HandlerBundle {
	return &handlers.HandlerBundle{
		ChatHandler:              named("chat"),
		GetSessionHandler:        named("session"),
		GetSessionWidgetsHandler: named("widgets"),
		WidgetActionHandler:      named("action"),
		TestGetHandler:           named("test-get"),
		TestPostHandler:          named("test-post"),
		HealthHandler:            named("health"),
	}
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, bundle())

	cases := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/chat", "chat"},
		{http.MethodPost, "/api/chat", "chat"},
		{http.MethodGet, "/chat/sessions/abc", "session"},
		{http.MethodGet, "/chat/sessions/abc/widgets", "widgets"},
		{http.MethodPost, "/chat/sessions/abc/actions", "action"},
		{http.MethodGet, "/api/test", "test-get"},
		{http.MethodPost, "/api/test", "test-post"},
		{http.MethodGet, "/health", "health"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Equal(t, tc.want, w.Body.String(), tc.path)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, bundle())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
