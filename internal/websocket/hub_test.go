package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/service"
)

type stubAuth struct {
	service.AuthService
	callers map[string]authz.Caller
}

func (s stubAuth) Authenticate(_ context.Context, token string) (authz.Caller, error) {
	c, ok := s.callers[token]
	if !ok {
		return authz.Caller{}, apperr.InvalidCredentials("Could not validate credentials")
	}
	return c, nil
}

var (
	adminCaller = authz.Caller{ID: uuid.New(), Role: model.RoleSuperAdmin, IsActive: true}
	aliceCaller = authz.Caller{ID: uuid.New(), Role: model.RoleUser, IsActive: true}
	bobCaller   = authz.Caller{ID: uuid.New(), Role: model.RoleUser, IsActive: true}
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	auth := stubAuth{callers: map[string]authz.Caller{
		"admin": adminCaller,
		"alice": aliceCaller,
		"bob":   bobCaller,
		"off":   {ID: uuid.New(), Role: model.RoleUser, IsActive: false},
	}}
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, auth, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(conn *websocket.Conn, wait time.Duration) (Event, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	var ev Event
	err = json.Unmarshal(raw, &ev)
	return ev, err
}

func TestServeWs_RejectsBadTokens(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "forged")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "off")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_LoanEventsReachOwnerAndManagers(t *testing.T) {
	hub, srv := newTestServer(t)

	admin, _, err := dial(t, srv, "admin")
	require.NoError(t, err)
	defer admin.Close()
	alice, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dial(t, srv, "bob")
	require.NoError(t, err)
	defer bob.Close()
	waitForClients(t, hub, 3)

	hub.Publish("loan.approved", &service.LoanResponse{ID: "L1", UserID: aliceCaller.ID.String(), LoanStatus: model.LoanStatusApproved})

	for _, conn := range []*websocket.Conn{admin, alice} {
		ev, err := readEvent(conn, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "loan.approved", ev.Type)
		data := ev.Data.(map[string]interface{})
		assert.Equal(t, "L1", data["id"])
	}

	_, err = readEvent(bob, 200*time.Millisecond)
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "bob should not receive alice's loan, got %v", err)
}

func TestHub_UnownedEventsBroadcast(t *testing.T) {
	hub, srv := newTestServer(t)

	bob, _, err := dial(t, srv, "bob")
	require.NoError(t, err)
	defer bob.Close()
	waitForClients(t, hub, 1)

	hub.Publish("system.notice", map[string]string{"msg": "maintenance at 18:00"})
	ev, err := readEvent(bob, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "system.notice", ev.Type)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}
