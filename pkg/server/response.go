package server

import (
	"errors"
	"net/http"

	"github.com/agenthands/amane/pkg/core"
	"github.com/gin-gonic/gin"
)

// Envelope is the JSON body of every non-payload response.
type Envelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// ErrorData carries the public message of a failed request. It never holds
// the text of the underlying error.
type ErrorData struct {
	Message string `json:"message"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{OK: true, Data: data})
}

func respondStatus(c *gin.Context, status int) {
	c.AbortWithStatusJSON(status, Envelope{OK: false, Data: ErrorData{Message: http.StatusText(status)}})
}

// statusOf maps a bucket error onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError records err on the context for the access log and answers
// with the generic message for its status.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	respondStatus(c, statusOf(err))
}
