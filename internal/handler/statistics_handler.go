package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/response"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              *middleware.Auth
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth *middleware.Auth) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("", h.auth.RequirePermission(authz.ViewAssets), h.GetStatistics)
	}
}

// GetStatistics godoc
// @Summary      Get dashboard statistics
// @Description  Asset counts by status, loan counts (own loans unless the caller manages loans) and the most borrowed assets in a time range
// @Tags         statistics
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query     string  false  "Start date (RFC3339, default first day of the month)"
// @Param        end_date    query     string  false  "End date (RFC3339, default now)"
// @Success      200         {object}  response.Response{data=model.DashboardStatistics}
// @Failure      422         {object}  response.Response
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	startDate, err := optionalTime(c, "start_date")
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	endDate, err := optionalTime(c, "end_date")
	if err != nil {
		middleware.RenderError(c, err)
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), currentCaller(c), startDate, endDate)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", stats)
}

func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.ValidationFields("Invalid query parameter", map[string]string{key: "expected RFC3339 format"})
	}
	return &t, nil
}
