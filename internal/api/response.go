package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/eventclone/internal/clone"
	"github.com/gotrs-io/eventclone/internal/clonequeue"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{Success: false, Error: message})
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case clone.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, clonequeue.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, clonequeue.ErrJobTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError writes err with its mapped status. Internal failures
// are logged and replaced with a generic message.
func (r *Router) sendServiceError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		r.logger.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		sendError(c, status, "internal error")
		return
	}
	sendError(c, status, err.Error())
}
