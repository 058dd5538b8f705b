package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Page wraps a list result with its pagination window.
type Page struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}

// Success returns a success envelope wrapping the data
func Success(statusCode int, message string, data interface{}) Response {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return Response{Status: statusCode, Message: message, Data: data}
}

// Error returns an error envelope; fields may be nil.
func Error(statusCode int, message string, fields map[string]string) Response {
	return Response{Status: statusCode, Message: message, Errors: fields}
}

// JSON writes r with its own status code.
func JSON(c *gin.Context, r Response) {
	c.JSON(r.Status, r)
}

func OK(c *gin.Context, message string, data interface{}) {
	JSON(c, Success(http.StatusOK, message, data))
}

func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, Success(http.StatusCreated, message, data))
}
