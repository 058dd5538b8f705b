package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"assetlend/internal/apperr"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/response"
)

type AuthHandler struct {
	authService service.AuthService
	auth        *middleware.Auth
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewAuthHandler(authService service.AuthService, auth *middleware.Auth, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, auth: auth, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/auth")
	{
		group.POST("/login", h.Login)
		group.POST("/refresh", h.Refresh)
		group.POST("/logout", h.Logout)
		group.GET("/me", h.auth.Authenticated(), h.Me)
	}
}

// Login handles POST /api/auth/login to authenticate and return a token pair
// @Summary      Login user
// @Description  Authenticates a user by email and password. Tokens are also set as HttpOnly cookies.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}

	h.auth.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	response.OK(c, "Login successful", tokens)
}

// Refresh handles POST /api/auth/refresh
// @Summary      Refresh tokens
// @Description  Issues a new token pair from a refresh token in the body or the refresh_token cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  false  "Refresh token"
// @Success      200      {object}  response.Response{data=service.TokenResponse}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req service.RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.BindError(c, err)
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(middleware.RefreshTokenCookie)
	}
	if req.RefreshToken == "" {
		middleware.RenderError(c, apperr.InvalidCredentials("Refresh token is missing"))
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}

	h.auth.SetTokenCookies(c, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	response.OK(c, "Token refreshed", tokens)
}

// Logout handles POST /api/auth/logout
// @Summary      Logout
// @Description  Clears the token cookies
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.auth.ClearTokenCookies(c)
	response.OK(c, "Logged out", nil)
}

// Me handles GET /api/auth/me
// @Summary      Get current user
// @Description  Returns the authenticated user with the permissions of their role
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authService.Me(c.Request.Context(), currentCaller(c))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", me)
}
