package handler

import (
	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequirePermission(authz.ViewAuditLogs))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns audit records newest first with the acting user's name
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        skip   query     int  false  "Offset (default 0)"
// @Param        limit  query     int  false  "Page size 1-100 (default 100)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.AuditLogResponse}}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	logs, total, err := h.auditService.List(c.Request.Context(), p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(logs, total, p))
}
