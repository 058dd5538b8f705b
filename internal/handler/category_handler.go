package handler

import (
	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type CategoryHandler struct {
	categoryService service.CategoryService
	auth            *middleware.Auth
}

func NewCategoryHandler(categoryService service.CategoryService, auth *middleware.Auth) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auth: auth}
}

func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/categories")
	{
		group.GET("", h.auth.RequirePermission(authz.ViewCategories), h.List)
		group.GET("/:id", h.auth.RequirePermission(authz.ViewCategories), h.Get)
		group.POST("", h.auth.RequirePermission(authz.ManageCategories), h.Create)
		group.PUT("/:id", h.auth.RequirePermission(authz.ManageCategories), h.Update)
		group.DELETE("/:id", h.auth.RequirePermission(authz.ManageCategories), h.Delete)
	}
}

// List godoc
// @Summary      List asset categories
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query     int  false  "Offset (default 0)"
// @Param        limit  query     int  false  "Page size 1-100 (default 100)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.CategoryResponse}}
// @Router       /api/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	cats, total, err := h.categoryService.List(c.Request.Context(), p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(cats, total, p))
}

// Get godoc
// @Summary      Get asset category
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response{data=service.CategoryResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	cat, err := h.categoryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", cat)
}

// Create godoc
// @Summary      Create asset category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CategoryRequest  true  "Category"
// @Success      201      {object}  response.Response{data=service.CategoryResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	cat, err := h.categoryService.Create(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.Created(c, "Category created", cat)
}

// Update godoc
// @Summary      Update asset category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Category ID"
// @Param        payload  body      service.CategoryRequest  true  "Category"
// @Success      200      {object}  response.Response{data=service.CategoryResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	cat, err := h.categoryService.Update(c.Request.Context(), currentCaller(c), c.Param("id"), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Category updated", cat)
}

// Delete godoc
// @Summary      Delete asset category
// @Description  Refused while any asset still belongs to the category
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.categoryService.Delete(c.Request.Context(), currentCaller(c), c.Param("id")); err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Category deleted", nil)
}
