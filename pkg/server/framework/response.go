package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// Respond converts a Go value to JSON and sends it to the client
func Respond(c *gin.Context, data any, statusCode int) {
	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return
	}
	c.IndentedJSON(statusCode, data)
}

// RespondError sends an error response back to the client. If the error is a
// SafeError, its message, code, and fields are sent back; anything else may
// contain sensitive data and becomes a generic 500.
func RespondError(c *gin.Context, err error) {
	// surface the error to the middleware chain for logging and shutdown checks
	_ = c.Error(err)

	var safeErr *SafeError
	if errors.As(errors.Cause(err), &safeErr) {
		Respond(c, ErrorResponse{
			Error:  safeErr.Err.Error(),
			Code:   safeErr.Code,
			Fields: safeErr.Fields,
		}, safeErr.StatusCode)
		return
	}
	Respond(c, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError)
}
