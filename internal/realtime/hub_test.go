package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, state StateFunc) (*Hub, string) {
	t.Helper()
	hub := NewHub(state, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestInitialStateOnConnect(t *testing.T) {
	_, url := startHub(t, func(ctx context.Context) (any, error) {
		return map[string]string{"status": "not-started"}, nil
	})

	conn := dial(t, url)
	f := readFrame(t, conn)
	assert.Equal(t, "event", f.Type)
	assert.Equal(t, MethodRace, f.Method)
	assert.Equal(t, map[string]any{"status": "not-started"}, f.Payload)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, url := startHub(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.BroadcastEvent(MethodRace, map[string]string{"status": "in-progress"})

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, MethodRace, f.Method)
		assert.Equal(t, map[string]any{"status": "in-progress"}, f.Payload)
	}
}

func TestPingAndStateRequest(t *testing.T) {
	_, url := startHub(t, func(ctx context.Context) (any, error) {
		return "snapshot", nil
	})
	conn := dial(t, url)
	readFrame(t, conn) // initial state

	require.NoError(t, conn.WriteJSON(Frame{Type: "ping", ID: "p1"}))
	f := readFrame(t, conn)
	assert.Equal(t, "pong", f.Type)
	assert.Equal(t, "p1", f.ID)

	require.NoError(t, conn.WriteJSON(Frame{Type: "req", ID: "r1", Method: MethodRace}))
	f = readFrame(t, conn)
	assert.Equal(t, "res", f.Type)
	assert.True(t, f.OK)
	assert.Equal(t, "snapshot", f.Payload)

	require.NoError(t, conn.WriteJSON(Frame{Type: "req", ID: "r2", Method: "nope"}))
	f = readFrame(t, conn)
	assert.Equal(t, "unknown request", f.Error)
}

func TestStateErrorReported(t *testing.T) {
	var calls atomic.Int32
	_, url := startHub(t, func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return "first", nil
		}
		return nil, errors.New("session closed")
	})
	conn := dial(t, url)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Frame{Type: "req", ID: "r1", Method: MethodRace}))
	f := readFrame(t, conn)
	assert.False(t, f.OK)
	assert.Equal(t, "session closed", f.Error)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}
