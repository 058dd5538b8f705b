package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/service"
	"assetlend/pkg/response"
)

type stubAuth struct {
	callers map[string]authz.Caller
}

func (s stubAuth) Login(context.Context, service.LoginRequest) (*service.TokenResponse, error) {
	return nil, errors.New("not implemented")
}

func (s stubAuth) Refresh(context.Context, string) (*service.TokenResponse, error) {
	return nil, errors.New("not implemented")
}

func (s stubAuth) Authenticate(_ context.Context, token string) (authz.Caller, error) {
	c, ok := s.callers[token]
	if !ok {
		return authz.Caller{}, apperr.InvalidCredentials("Could not validate credentials")
	}
	return c, nil
}

func (s stubAuth) Me(context.Context, authz.Caller) (*service.MeResponse, error) {
	return nil, errors.New("not implemented")
}

func newTestRouter() (*gin.Engine, *Auth) {
	gin.SetMode(gin.TestMode)
	auth := NewAuth(stubAuth{callers: map[string]authz.Caller{
		"admin":    {ID: uuid.New(), Username: "root", Role: model.RoleSuperAdmin, IsActive: true},
		"user":     {ID: uuid.New(), Username: "alice", Role: model.RoleUser, IsActive: true},
		"inactive": {ID: uuid.New(), Username: "bob", Role: model.RoleSuperAdmin, IsActive: false},
	}}, authz.NewGate(), false)

	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()), Recovery())
	r.GET("/me", auth.Authenticated(), func(c *gin.Context) {
		caller, _ := CallerFrom(c)
		response.OK(c, "", gin.H{"username": caller.Username, "ip": service.ClientIPFrom(c.Request.Context())})
	})
	r.GET("/assets", auth.RequirePermission(authz.ViewAssets), func(c *gin.Context) { response.OK(c, "", nil) })
	r.POST("/assets", auth.RequirePermission(authz.ManageAssets), func(c *gin.Context) { response.Created(c, "", nil) })
	r.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) { response.OK(c, "", nil) })
	r.GET("/boom", func(c *gin.Context) { RenderError(c, errors.New("pq: connection refused")) })
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	return r, auth
}

func do(r http.Handler, method, path string, setup func(*http.Request)) (*httptest.ResponseRecorder, response.Response) {
	req := httptest.NewRequest(method, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestAuthenticated(t *testing.T) {
	r, _ := newTestRouter()

	w, body := do(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", body.Message)

	w, _ = do(r, http.MethodGet, "/me", func(req *http.Request) { req.Header.Set("Authorization", "Token abc") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(r, http.MethodGet, "/me", bearer("nope"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = do(r, http.MethodGet, "/me", bearer("inactive"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User account is inactive", body.Message)

	w, body = do(r, http.MethodGet, "/me", bearer("user"))
	require.Equal(t, http.StatusOK, w.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "alice", data["username"])
	assert.NotEmpty(t, data["ip"])

	w, _ = do(r, http.MethodGet, "/me", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "user"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission(t *testing.T) {
	r, _ := newTestRouter()

	w, _ := do(r, http.MethodGet, "/assets", bearer("user"))
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(r, http.MethodPost, "/assets", bearer("user"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, body.Status)

	w, _ = do(r, http.MethodPost, "/assets", bearer("admin"))
	assert.Equal(t, http.StatusCreated, w.Code)

	// inactive is reported before the permission check
	w, body = do(r, http.MethodPost, "/assets", bearer("inactive"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User account is inactive", body.Message)
}

func TestRequireAdmin(t *testing.T) {
	r, _ := newTestRouter()

	w, _ := do(r, http.MethodGet, "/admin", bearer("user"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(r, http.MethodGet, "/admin", bearer("admin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRenderError_HidesInternals(t *testing.T) {
	r, _ := newTestRouter()

	w, body := do(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, genericErrorMessage, body.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRecovery(t *testing.T) {
	r, _ := newTestRouter()

	w, body := do(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, genericErrorMessage, body.Message)
}

func TestRequestID(t *testing.T) {
	r, _ := newTestRouter()

	w, _ := do(r, http.MethodGet, "/assets", bearer("user"))
	assert.Len(t, w.Header().Get(RequestIDHeader), 26)

	w, _ = do(r, http.MethodGet, "/assets", func(req *http.Request) {
		req.Header.Set(RequestIDHeader, "abc-123")
		req.Header.Set("Authorization", "Bearer user")
	})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestTokenCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, auth := newTestRouter()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	auth.SetTokenCookies(c, "a", "r", time.Minute, 2*time.Minute)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.Equal(t, 60, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/api/auth", cookies[1].Path)
}
