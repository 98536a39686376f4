package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"luxemap/estates/internal/api/handlers"
	"luxemap/estates/internal/api/middleware"
	"luxemap/estates/internal/captcha"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/email"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
)

// Dependencies are the long-lived components the public API serves from.
type Dependencies struct {
	Sessions   *site.Store
	Chat       handlers.IChatLoop
	Properties services.IPropertyService
	Agents     services.IAgentService
	Content    services.IContentService
	Saved      services.ISavedService
	Enquiries  services.IEnquiryService
	Newsletter services.INewsletterService
	Verifier   captcha.IVerifier
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the
// background cleanup of the rate limiter.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	go rateLimiter.RunCleanup(ctx)

	// Order matters: the captcha and rate limiter key on the visitor id.
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.VisitorMiddleware())
	r.Use(middleware.CaptchaMiddleware(deps.Verifier, cfg.CaptchaTokenTTL))
	r.Use(rateLimiter.Limit())

	jsonApiHandler := handlers.NewJsonApiHandler(cfg, deps.Sessions, deps.Chat, deps.Properties, deps.Saved, deps.Enquiries, deps.Newsletter)
	propertyHandler := handlers.NewRestPropertyHandler(deps.Properties)
	agentHandler := handlers.NewRestAgentHandler(deps.Agents)
	contentHandler := handlers.NewRestContentHandler(deps.Content)
	viewHandler := handlers.NewRestViewHandler(deps.Sessions, deps.Properties, deps.Agents, deps.Content)
	adminHandler := handlers.NewRestAdminHandler(deps.Enquiries)

	v1 := r.Group("/v1")
	{
		v1.POST("/api", jsonApiHandler.HandleRequest)

		v1.GET("/properties", propertyHandler.SearchProperties)
		v1.GET("/properties/:id", propertyHandler.GetProperty)

		v1.GET("/agents", agentHandler.ListAgents)
		v1.GET("/agents/:id", agentHandler.GetAgent)
		v1.GET("/agents/:id/vcard", agentHandler.GetContactCard)

		v1.GET("/testimonials", contentHandler.GetTestimonials)
		v1.GET("/lifestyle-curations", contentHandler.GetLifestyleCurations)
		v1.GET("/market-insights", contentHandler.GetMarketInsights)
		v1.GET("/services", contentHandler.GetServicesPage)
		v1.GET("/agents-page", contentHandler.GetAgentsPage)

		v1.GET("/view", viewHandler.GetView)
		v1.POST("/view", viewHandler.Navigate)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/enquiries", adminHandler.ListEnquiries)
		}
	}

	return r
}

const (
	testEmailPolls        = 10
	testEmailPollInterval = 200 * time.Millisecond
)

// SetupServiceRouter configures the service engine used by operators and
// end-to-end tests. It listens on its own port and must not be exposed.
// rdb may be nil, in which case getTestEmail is unavailable.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logging.Logger.Info("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logging.Logger.Warn("Shutdown channel already signaled")
			}

		case "getTestEmail":
			if rdb == nil || !cfg.MockServices {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Mock email capture is not enabled"})
				return
			}
			var args []string // [kind, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			key := email.MockEmailKey(args[1], args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			var raw string
			var getErr error
			found := false
			for i := 0; i < testEmailPolls; i++ {
				raw, getErr = rdb.Get(ctx, key).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, key)
					break
				}
				if !errors.Is(getErr, redis.Nil) {
					logging.Logger.Errorf("Service API: failed to read %s from Redis: %v", key, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(testEmailPollInterval)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", key)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &emailData); err != nil {
				logging.Logger.Errorf("Service API: malformed email data in %s: %v", key, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
