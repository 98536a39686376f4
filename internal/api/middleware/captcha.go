package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"luxemap/estates/internal/captcha"
	"luxemap/estates/internal/logging"
)

const (
	// ContextKeyIsHumanVerified holds the captcha status in Gin context.
	ContextKeyIsHumanVerified = "isHumanVerified"

	HeaderFingerprint  = "X-BFP"
	HeaderHumanToken   = "X-C-T"
	HeaderCaptchaValue = "X-C-V"
)

// CaptchaMiddleware marks the request as human when it carries a valid
// X-C-T token, or when its X-C-V Turnstile challenge verifies. In the
// latter case a fresh X-C-T is returned. It never aborts; the rate limiter
// decides what an unverified client may do.
func CaptchaMiddleware(verifier captcha.IVerifier, tokenTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := captcha.Client{
			IP:          c.ClientIP(),
			Fingerprint: c.GetHeader(HeaderFingerprint),
			Visitor:     c.GetHeader(HeaderVisitor),
		}

		isHuman := false
		if token := c.GetHeader(HeaderHumanToken); token != "" {
			if err := verifier.CheckHumanToken(token, client); err == nil {
				isHuman = true
			} else {
				logging.Logger.Debugf("Rejected X-C-T for %s: %v", client.Visitor, err)
			}
		}

		if challenge := c.GetHeader(HeaderCaptchaValue); !isHuman && challenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), challenge, client.IP)
			switch {
			case err != nil:
				logging.Logger.Warnf("Turnstile verification error for %s: %v", client.Visitor, err)
			case verified:
				isHuman = true
				token, err := verifier.IssueHumanToken(client, tokenTTL)
				if err != nil {
					logging.Logger.Errorf("Failed to issue X-C-T: %v", err)
				} else {
					c.Header(HeaderHumanToken, token)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
