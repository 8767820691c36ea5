// Package middleware holds the HTTP-layer concerns that sit outside the
// core's §6 operations, adapted from the teacher's
// internal/transport/http/middleware/middleware.go. There is no auth
// middleware here: spec §1 names session/JWT validation as an external
// collaborator, so routes take a pre-authenticated user segment directly.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saan/taskflow-agent/pkg/logger"
)

// Logging logs one structured line per HTTP request.
func Logging(log logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.WithFields(map[string]interface{}{
			"client_ip":   param.ClientIP,
			"timestamp":   param.TimeStamp.Format(time.RFC3339),
			"method":      param.Method,
			"path":        param.Path,
			"status_code": param.StatusCode,
			"latency":     param.Latency,
		}).Info("http request")
		return ""
	})
}

// CORS allows cross-origin calls from an operator dashboard.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// Recovery turns a panic into a 500 instead of killing the server.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithField("error", recovered).Error("panic recovered")
		c.JSON(500, gin.H{"error": "internal error"})
		c.Abort()
	})
}
