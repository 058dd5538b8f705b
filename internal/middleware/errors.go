package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/pkg/response"
)

const genericErrorMessage = "Internal server error"

// RenderError writes err as a response envelope. Classified errors keep
// their message; anything else is logged and replaced by a generic one.
func RenderError(c *gin.Context, err error) {
	response.JSON(c, errorResponse(c, err))
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), errorResponse(c, err))
}

func errorResponse(c *gin.Context, err error) response.Response {
	status := apperr.HTTPStatus(err)
	if !apperr.IsClassified(err) {
		LoggerFrom(c).Error("unhandled error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		return response.Error(http.StatusInternalServerError, genericErrorMessage, nil)
	}
	return response.Error(status, err.Error(), apperr.FieldsOf(err))
}

// BindError renders a request binding failure as a validation error.
func BindError(c *gin.Context, err error) {
	RenderError(c, apperr.ValidationFields("Invalid request payload", map[string]string{"body": err.Error()}))
}
