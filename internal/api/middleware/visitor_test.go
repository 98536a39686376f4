package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxemap/estates/internal/api/middleware"
	"luxemap/estates/internal/auth"
)

func visitorEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.VisitorMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.VisitorID(c)+"|"+c.GetHeader("X-SPA"))
	})
	return r
}

func TestVisitorMiddleware_KeepsValidID(t *testing.T) {
	w := doGet(visitorEngine(), "/test", "1.1.1.1:1", map[string]string{"X-SPA": "spa_session-01"})

	assert.Equal(t, "spa_session-01|spa_session-01", w.Body.String())
	assert.Equal(t, "spa_session-01", w.Header().Get("X-SPA"))
}

func TestVisitorMiddleware_MintsIDWhenMissingOrInvalid(t *testing.T) {
	for name, header := range map[string]string{
		"missing":   "",
		"too short": "abc",
		"bad chars": "visitor id; drop",
	} {
		t.Run(name, func(t *testing.T) {
			headers := map[string]string{}
			if header != "" {
				headers["X-SPA"] = header
			}
			w := doGet(visitorEngine(), "/test", "1.1.1.1:1", headers)

			id := w.Header().Get("X-SPA")
			_, err := uuid.Parse(id)
			require.NoError(t, err)
			assert.Equal(t, id+"|"+id, w.Body.String())
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doGet(r, "/test", "1.1.1.1:1", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-SPA")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-C-T")

	req, _ := http.NewRequest(http.MethodOptions, "/test", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	admin := r.Group("/admin", middleware.AuthMiddleware("secret"), middleware.AdminMiddleware())
	admin.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.ContextKeyStaffEmail))
	})

	adminToken, err := auth.GenerateJWT("boss@luxemap.com", true, "secret", time.Hour)
	require.NoError(t, err)
	staffToken, err := auth.GenerateJWT("agent@luxemap.com", false, "secret", time.Hour)
	require.NoError(t, err)
	foreignToken, err := auth.GenerateJWT("boss@luxemap.com", true, "other", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + foreignToken, http.StatusUnauthorized, ""},
		{"not admin", "Bearer " + staffToken, http.StatusForbidden, ""},
		{"admin", "Bearer " + adminToken, http.StatusOK, "boss@luxemap.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := doGet(r, "/admin/whoami", "1.1.1.1:1", headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
