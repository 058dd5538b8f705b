package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"assetlend/internal/apperr"
)

const (
	DefaultSkip  = 0
	DefaultLimit = 100
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds a validated skip/limit window
type Params struct {
	Skip  int
	Limit int
}

// New validates a skip/limit pair. Out of range values are rejected, not clamped.
func New(skip, limit int) (Params, error) {
	fields := map[string]string{}
	if skip < 0 {
		fields["skip"] = "must be greater than or equal to 0"
	}
	if limit < MinLimit || limit > MaxLimit {
		fields["limit"] = "must be between 1 and 100"
	}
	if len(fields) > 0 {
		return Params{}, apperr.ValidationFields("Invalid pagination parameters", fields)
	}
	return Params{Skip: skip, Limit: limit}, nil
}

// Parse extracts and validates skip/limit from query parameters
func Parse(c *gin.Context) (Params, error) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", strconv.Itoa(DefaultSkip)))
	if err != nil {
		return Params{}, apperr.ValidationFields("Invalid pagination parameters", map[string]string{"skip": "must be an integer"})
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil {
		return Params{}, apperr.ValidationFields("Invalid pagination parameters", map[string]string{"limit": "must be an integer"})
	}
	return New(skip, limit)
}
