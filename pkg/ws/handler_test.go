package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrymomot/ridekit/pkg/authtoken"
	"github.com/dmitrymomot/ridekit/pkg/presence"
	"github.com/dmitrymomot/ridekit/pkg/rooms"
	"github.com/dmitrymomot/ridekit/pkg/ws"
)

type fixture struct {
	server  *httptest.Server
	tokens  *authtoken.Service
	manager *presence.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := authtoken.NewFromString("test-signing-key")
	require.NoError(t, err)

	directory := presence.UserDirectoryFunc(func(ctx context.Context, userID string) (presence.User, error) {
		return presence.User{ID: userID}, nil
	})

	manager, err := presence.NewManager(tokens, directory)
	require.NoError(t, err)

	// Everyone except "outsider" may join any room.
	authz := rooms.AuthorizerFunc(func(ctx context.Context, userID, roomID string) (bool, error) {
		return userID != "outsider", nil
	})
	roomSvc, err := rooms.NewService(manager, authz)
	require.NoError(t, err)

	handler, err := ws.NewHandler(manager, roomSvc)
	require.NoError(t, err)

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &fixture{server: server, tokens: tokens, manager: manager}
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()

	token, err := f.tokens.Generate(authtoken.Claims{
		Subject:   userID,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func (f *fixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws?token=" + f.token(t, userID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) presence.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var event presence.Event
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	return event
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd map[string]string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, cmd))
}

func TestHandler_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(f.server.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()

		resp, err := http.Get(f.server.URL + "/ws?token=garbage")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHandler_ConnectAndAck(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	conn := f.dial(t, "rider-1")

	ack := readEvent(t, conn)
	assert.Equal(t, presence.EventConnected, ack.Type)
	assert.Equal(t, "rider-1", ack.UserID)

	assert.Eventually(t, func() bool {
		return f.manager.IsOnline("rider-1")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHandler_RoomFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rider := f.dial(t, "rider-1")
	driver := f.dial(t, "driver-7")
	readEvent(t, rider)  // connected ack
	readEvent(t, driver) // connected ack

	sendCommand(t, rider, map[string]string{"action": "join", "room_id": "ride-42"})
	joined := readEvent(t, rider)
	assert.Equal(t, presence.EventRoomJoined, joined.Type)
	assert.Equal(t, "ride-42", joined.RoomID)
	assert.Equal(t, "rider-1", joined.UserID)

	sendCommand(t, driver, map[string]string{"action": "join", "room_id": "ride-42"})
	// Both members see the driver's join.
	driverJoined := readEvent(t, driver)
	assert.Equal(t, presence.EventRoomJoined, driverJoined.Type)
	riderSawJoin := readEvent(t, rider)
	assert.Equal(t, "driver-7", riderSawJoin.UserID)

	sendCommand(t, driver, map[string]string{"action": "message", "room_id": "ride-42", "text": "on my way"})
	msg := readEvent(t, rider)
	assert.Equal(t, presence.EventMessage, msg.Type)
	assert.Equal(t, "driver-7", msg.UserID)
	assert.Equal(t, "on my way", msg.Data["text"])
}

func TestHandler_UnauthorizedJoinHasNoEffect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	member := f.dial(t, "rider-1")
	outsider := f.dial(t, "outsider")
	readEvent(t, member)
	readEvent(t, outsider)

	sendCommand(t, member, map[string]string{"action": "join", "room_id": "ride-42"})
	readEvent(t, member) // own join event

	// The outsider's denied join produces no events for anyone.
	sendCommand(t, outsider, map[string]string{"action": "join", "room_id": "ride-42"})

	sendCommand(t, member, map[string]string{"action": "message", "room_id": "ride-42", "text": "hello"})
	msg := readEvent(t, member)
	assert.Equal(t, presence.EventMessage, msg.Type)

	// Outsider never received join confirmation or the message.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var event presence.Event
	err := wsjson.Read(ctx, outsider, &event)
	assert.Error(t, err, "outsider should not receive room events")
}

func TestHandler_DisconnectCleansUpPresence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	conn := f.dial(t, "rider-1")
	readEvent(t, conn)

	require.Eventually(t, func() bool {
		return f.manager.IsOnline("rider-1")
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "leaving"))

	require.Eventually(t, func() bool {
		return !f.manager.IsOnline("rider-1")
	}, 2*time.Second, 20*time.Millisecond)
}
