package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/service"
)

const (
	callerKey         = "caller"
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie is scoped to the auth routes only.
	RefreshTokenCookie = "refresh_token"
)

// Auth resolves the bearer token of a request to an authz.Caller and
// enforces the gate's checks in front of handlers.
type Auth struct {
	auth          service.AuthService
	gate          *authz.Gate
	secureCookies bool
}

func NewAuth(auth service.AuthService, gate *authz.Gate, secureCookies bool) *Auth {
	return &Auth{auth: auth, gate: gate, secureCookies: secureCookies}
}

// Authenticated lets through any active caller with a valid access token.
func (a *Auth) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := a.resolve(c)
		if !ok {
			return
		}
		if !caller.IsActive {
			abortWith(c, apperr.InactiveAccount())
			return
		}
		c.Next()
	}
}

// RequirePermission rejects callers whose role does not grant p.
func (a *Auth) RequirePermission(p authz.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := a.resolve(c)
		if !ok {
			return
		}
		if err := a.gate.RequirePermission(caller, p); err != nil {
			abortWith(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers that do not hold an admin role.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := a.resolve(c)
		if !ok {
			return
		}
		if err := a.gate.RequireRole(caller, authz.AdminRoles...); err != nil {
			abortWith(c, err)
			return
		}
		c.Next()
	}
}

// resolve authenticates the request once; later middleware in the chain reuse the caller.
func (a *Auth) resolve(c *gin.Context) (authz.Caller, bool) {
	if caller, ok := CallerFrom(c); ok {
		return caller, true
	}
	token, err := tokenFromRequest(c)
	if err != nil {
		abortWith(c, err)
		return authz.Caller{}, false
	}
	caller, err := a.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		abortWith(c, err)
		return authz.Caller{}, false
	}
	c.Set(callerKey, caller)
	return caller, true
}

// tokenFromRequest prefers the Authorization header and falls back to the cookie.
func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperr.InvalidCredentials("Invalid authorization format. Expected 'Bearer <token>'")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, nil
	}
	return "", apperr.InvalidCredentials("Not authenticated")
}

// CallerFrom returns the caller stored by the auth middleware.
func CallerFrom(c *gin.Context) (authz.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return authz.Caller{}, false
	}
	caller, ok := v.(authz.Caller)
	return caller, ok
}

// SetTokenCookies stores both tokens as HttpOnly cookies.
func (a *Auth) SetTokenCookies(c *gin.Context, access, refresh string, accessTTL, refreshTTL time.Duration) {
	a.sameSite(c)
	c.SetCookie(AccessTokenCookie, access, int(accessTTL/time.Second), "/", "", a.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, refresh, int(refreshTTL/time.Second), "/api/auth", "", a.secureCookies, true)
}

func (a *Auth) ClearTokenCookies(c *gin.Context) {
	a.sameSite(c)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", a.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/api/auth", "", a.secureCookies, true)
}

// Cross-origin deployments need SameSite=None, which browsers only accept with Secure.
func (a *Auth) sameSite(c *gin.Context) {
	if a.secureCookies {
		c.SetSameSite(http.SameSiteNoneMode)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
}
