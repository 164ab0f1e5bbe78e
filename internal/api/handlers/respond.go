package handlers

import (
	"net/http"

	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/middleware"
	"github.com/fluffyriot/rpinsights/internal/worker"
	"github.com/gin-gonic/gin"
)

const maxMessage = 200

// fail reports err in the {ok:false} envelope. Classified failures keep a 200
// status; anything unclassified is a 500 server_error.
func fail(c *gin.Context, err error, extra gin.H) {
	code := worker.CodeOf(err)
	status := http.StatusOK
	if code == worker.CodeServerError {
		status = http.StatusInternalServerError
		logging.Error().Err(err).Str("path", c.FullPath()).Msg("Server: unclassified failure")
	}

	body := middleware.ErrorBody(string(code), helpers.Truncate(err.Error(), maxMessage))
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func invalid(c *gin.Context, message string) {
	c.JSON(http.StatusOK, middleware.ErrorBody(string(worker.CodeInvalidRequest), message))
}
