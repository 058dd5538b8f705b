package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

// currentCaller returns the caller resolved by the auth middleware on this route.
func currentCaller(c *gin.Context) authz.Caller {
	caller, _ := middleware.CallerFrom(c)
	return caller
}

func page(items interface{}, total int64, p pagination.Params) response.Page {
	return response.Page{Items: items, Total: total, Skip: p.Skip, Limit: p.Limit}
}

// optionalBool parses an optional boolean query parameter.
func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.ValidationFields("Invalid query parameter", map[string]string{key: "must be true or false"})
	}
	return &v, nil
}
