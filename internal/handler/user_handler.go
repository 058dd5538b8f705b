package handler

import (
	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type UserHandler struct {
	userService service.UserService
	auth        *middleware.Auth
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, auth *middleware.Auth) *UserHandler {
	return &UserHandler{userService: userService, auth: auth}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/api/users")
	{
		users.GET("", h.auth.RequirePermission(authz.ViewUsers), h.ListUsers)
		users.POST("", h.auth.RequirePermission(authz.ManageUsers), h.CreateUser)
		// owner-or-admin is decided by the service
		users.GET("/:id", h.auth.Authenticated(), h.GetUser)
		users.PUT("/:id", h.auth.Authenticated(), h.UpdateUser)
		users.DELETE("/:id", h.auth.RequirePermission(authz.ManageUsers), h.DeleteUser)
		users.POST("/:id/activate", h.auth.RequirePermission(authz.ManageUsers), h.Activate)
		users.POST("/:id/deactivate", h.auth.RequirePermission(authz.ManageUsers), h.Deactivate)
	}
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Description  Paginated list of users, optionally filtered by active flag, role and username/email search
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        skip       query     int     false  "Offset (default 0)"
// @Param        limit      query     int     false  "Page size 1-100 (default 100)"
// @Param        is_active  query     bool    false  "Filter by active flag"
// @Param        role_id    query     string  false  "Filter by role id"
// @Param        search     query     string  false  "Search username or email"
// @Success      200        {object}  response.Response{data=response.Page{items=[]service.UserResponse}}
// @Failure      422        {object}  response.Response
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	active, err := optionalBool(c, "is_active")
	if err != nil {
		middleware.RenderError(c, err)
		return
	}

	users, total, err := h.userService.ListUsers(c.Request.Context(), service.UserListFilter{
		IsActive: active,
		RoleID:   c.Query("role_id"),
		Search:   c.Query("search"),
	}, p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(users, total, p))
}

// CreateUser handles POST /api/users
// @Summary      Create a new user
// @Description  Creates a new user validating uniqueness and hashing the password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.Created(c, "User created", user)
}

// GetUser handles GET /api/users/:id
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), currentCaller(c), c.Param("id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", user)
}

// UpdateUser handles PUT /api/users/:id
// @Summary      Update user
// @Description  Users may edit their own profile; role and active flag require an administrator
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), currentCaller(c), c.Param("id"), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "User updated", user)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary      Delete user
// @Description  Soft-deletes a user; their loans and audit history are kept
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), currentCaller(c), c.Param("id")); err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "User deleted", nil)
}

// Activate handles POST /api/users/:id/activate
// @Summary      Activate user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/{id}/activate [post]
func (h *UserHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate handles POST /api/users/:id/deactivate
// @Summary      Deactivate user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	user, err := h.userService.SetActive(c.Request.Context(), currentCaller(c), c.Param("id"), active)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	msg := "User deactivated"
	if active {
		msg = "User activated"
	}
	response.OK(c, msg, user)
}
