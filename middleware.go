package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goerrors "github.com/go-errors/errors"
)

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observeHTTPRequest(route, status)
		log.Info("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", status,
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

// recovery turns a panic into a generic 500. The panic value and stack are
// logged, never sent to the client.
func recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := goerrors.Wrap(r, 2)
				log.Error("Panic handling request",
					"path", c.Request.URL.Path,
					"kind", err.TypeName(),
					"error", err.Error(),
					"stack", string(err.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"msg": unknownErrorMessage},
				})
			}
		}()
		c.Next()
	}
}
