package middleware

import (
	"fmt"
	"net/http"

	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/gin-gonic/gin"
)

const maxPanicMessage = 200

// Recovery turns a panic in any handler into a 500 server_error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			msg := fmt.Sprint(r)
			if err, ok := r.(error); ok {
				msg = err.Error()
			}
			logging.Error().
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Interface("panic", r).
				Msg("Server: recovered from panic")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody("server_error", helpers.Truncate(msg, maxPanicMessage)))
		}()
		c.Next()
	}
}
