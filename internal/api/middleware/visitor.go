package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderVisitor carries the SPA session id in both directions.
	HeaderVisitor = "X-SPA"
	// ContextKeyVisitorID holds the visitor id in Gin context.
	ContextKeyVisitorID = "visitorID"
)

var visitorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// VisitorMiddleware makes sure every request has a visitor id. A missing or
// malformed X-SPA header gets a fresh UUID, which is echoed back so the SPA
// can keep sending it. The request header is rewritten too, so captcha and
// rate limiting key on the same id.
func VisitorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderVisitor)
		if !visitorIDPattern.MatchString(id) {
			id = uuid.NewString()
			c.Request.Header.Set(HeaderVisitor, id)
		}
		c.Header(HeaderVisitor, id)
		c.Set(ContextKeyVisitorID, id)
		c.Next()
	}
}

// VisitorID returns the id set by VisitorMiddleware.
func VisitorID(c *gin.Context) string {
	return c.GetString(ContextKeyVisitorID)
}
