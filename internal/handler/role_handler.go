package handler

import (
	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type RoleHandler struct {
	roleService service.RoleService
	auth        *middleware.Auth
}

func NewRoleHandler(roleService service.RoleService, auth *middleware.Auth) *RoleHandler {
	return &RoleHandler{roleService: roleService, auth: auth}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	{
		roles.GET("", h.auth.RequirePermission(authz.ViewRoles), h.ListRoles)
		roles.GET("/:id", h.auth.RequirePermission(authz.ViewRoles), h.GetRole)
		roles.POST("", h.auth.RequirePermission(authz.ManageRoles), h.CreateRole)
		roles.PUT("/:id", h.auth.RequirePermission(authz.ManageRoles), h.UpdateRole)
	}
}

// ListRoles returns all roles with the permissions their name grants
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query     int  false  "Offset (default 0)"
// @Param        limit  query     int  false  "Page size 1-100 (default 100)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.RoleResponse}}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	roles, total, err := h.roleService.ListRoles(c.Request.Context(), p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(roles, total, p))
}

// GetRole returns a single role by ID
// @Summary      Get role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=service.RoleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", role)
}

// CreateRole creates a new role
// @Summary      Create role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	role, err := h.roleService.CreateRole(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.Created(c, "Role created", role)
}

// UpdateRole updates name and description; system roles keep their name
// @Summary      Update role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	role, err := h.roleService.UpdateRole(c.Request.Context(), currentCaller(c), c.Param("id"), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Role updated", role)
}
