// Package resp writes JSON responses. Success bodies are the payload itself;
// every failure uses the {message, error} body the web and mobile clients read.
package resp

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the failure envelope for all endpoints.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MessageBody acknowledges a write; ID is set for creates.
type MessageBody struct {
	Message string `json:"message"`
	ID      any    `json:"id,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, message string, id any) {
	c.JSON(http.StatusCreated, MessageBody{Message: message, ID: id})
}

func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageBody{Message: message})
}

// Error writes {message, error}; detail may be empty.
func Error(c *gin.Context, httpCode int, message string, detail string) {
	c.JSON(httpCode, ErrorBody{Message: message, Error: detail})
}

// Abort writes the error body and stops the handler chain (middleware use).
func Abort(c *gin.Context, httpCode int, message string) {
	c.AbortWithStatusJSON(httpCode, ErrorBody{Message: message})
}
