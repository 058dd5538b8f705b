package handler

import (
	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type AssetHandler struct {
	assetService service.AssetService
	auth         *middleware.Auth
}

func NewAssetHandler(assetService service.AssetService, auth *middleware.Auth) *AssetHandler {
	return &AssetHandler{assetService: assetService, auth: auth}
}

func (h *AssetHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/assets")
	{
		group.GET("", h.auth.RequirePermission(authz.ViewAssets), h.List)
		group.GET("/:id", h.auth.RequirePermission(authz.ViewAssets), h.Get)
		group.POST("", h.auth.RequirePermission(authz.ManageAssets), h.Create)
		group.PUT("/:id", h.auth.RequirePermission(authz.ManageAssets), h.Update)
		group.DELETE("/:id", h.auth.RequirePermission(authz.ManageAssets), h.Delete)
	}
}

// List godoc
// @Summary      List assets
// @Description  Paginated list with optional status and category filters and a search over name, code and serial number
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        skip         query     int     false  "Offset (default 0)"
// @Param        limit        query     int     false  "Page size 1-100 (default 100)"
// @Param        status       query     string  false  "Asset status"
// @Param        category_id  query     string  false  "Category ID"
// @Param        search       query     string  false  "Search term"
// @Success      200          {object}  response.Response{data=response.Page{items=[]service.AssetResponse}}
// @Failure      422          {object}  response.Response
// @Router       /api/assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	assets, total, err := h.assetService.List(c.Request.Context(), service.AssetListFilter{
		Status:     c.Query("status"),
		CategoryID: c.Query("category_id"),
		Search:     c.Query("search"),
	}, p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(assets, total, p))
}

// Get godoc
// @Summary      Get asset
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID"
// @Success      200  {object}  response.Response{data=service.AssetResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.assetService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", asset)
}

// Create godoc
// @Summary      Create asset
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAssetRequest  true  "Asset"
// @Success      201      {object}  response.Response{data=service.AssetResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	var req service.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	asset, err := h.assetService.Create(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.Created(c, "Asset created", asset)
}

// Update godoc
// @Summary      Update asset
// @Description  current_status cannot change while the asset has an open loan
// @Tags         assets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Asset ID"
// @Param        payload  body      service.UpdateAssetRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.AssetResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/assets/{id} [put]
func (h *AssetHandler) Update(c *gin.Context) {
	var req service.UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	asset, err := h.assetService.Update(c.Request.Context(), currentCaller(c), c.Param("id"), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Asset updated", asset)
}

// Delete godoc
// @Summary      Delete asset
// @Description  Only assets that were never lent out can be deleted
// @Tags         assets
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Asset ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/assets/{id} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	if err := h.assetService.Delete(c.Request.Context(), currentCaller(c), c.Param("id")); err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Asset deleted", nil)
}
