package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/api/middleware"
	"github.com/timmy/grievo/internal/errs"
)

// writeError maps err onto its HTTP status with a {message} body.
// Untyped errors become a generic 500 and are logged with their cause.
func writeError(c *gin.Context, err error) {
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.HTTPStatus >= http.StatusInternalServerError {
		log := middleware.GetLogger(c).WithError(err)
		if typed != nil {
			log = log.WithField("kind", string(typed.Kind))
		}
		log.Error("Request failed")
	}

	if typed == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(typed.HTTPStatus, gin.H{"message": typed.Message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
