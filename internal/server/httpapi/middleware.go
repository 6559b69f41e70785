package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/gin-gonic/gin"
)

const subjectKey = "subject"

// bearerToken returns the token from "Authorization: Bearer <t>", or "".
func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader(common.AuthorizationHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAdmin admits only requests carrying a valid admin session token.
func RequireAdmin(gate *access.Gate, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := gate.AuthorizeAdmin(bearerToken(c))
		if err != nil {
			writeError(c, log, err)
			c.Abort()
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

// RequirePlant rejects requests without a valid plant session token before
// any handler reads the body. Subject and origin checks stay with ingest.
func RequirePlant(gate *access.Gate, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := gate.AuthorizePlantSession(bearerToken(c))
		if err != nil {
			writeError(c, log, err)
			c.Abort()
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

func subjectFrom(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// RequestLogger logs one line per request. Query strings are left out
// since /verify carries its token there.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
