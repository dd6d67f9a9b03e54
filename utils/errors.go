package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DetailResponse is the error envelope every endpoint returns: {"detail": ...}.
type DetailResponse struct {
	Detail interface{} `json:"detail"`
}

// RespondWithDetail sends an error envelope and aborts the handler chain.
func RespondWithDetail(c *gin.Context, statusCode int, detail interface{}) {
	c.AbortWithStatusJSON(statusCode, DetailResponse{Detail: detail})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithDetail(c, http.StatusBadRequest, message)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithDetail(c, http.StatusUnauthorized, message)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithDetail(c, http.StatusNotFound, message)
}

// RespondWithUnprocessable sends a 422 for request bodies that fail validation
func RespondWithUnprocessable(c *gin.Context, message string) {
	RespondWithDetail(c, http.StatusUnprocessableEntity, message)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context) {
	RespondWithDetail(c, http.StatusInternalServerError, "Internal Server Error")
}
