package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon answers the hello exchange and then echoes canned replies for
// the five control methods.
func fakeDaemon(t *testing.T, authorized bool) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := response{ID: req.ID}
			switch req.Method {
			case methodHello:
				resp.OK = true
				resp.Authorized = authorized
			case methodSearchAndPlay:
				resp.OK = true
				resp.Message = "Playing: Morgenshtern — Cadillac (query: " + req.Params["query"] + ")"
			case methodPause:
				resp.OK = true
				resp.Message = "Paused"
			default:
				resp.OK = false
				resp.Message = "unsupported: " + req.Method
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBusHelloAuthorized(t *testing.T) {
	srv := fakeDaemon(t, true)
	defer srv.Close()

	bus, err := Dial(wsURL(srv), time.Second, nil)
	require.NoError(t, err)
	defer bus.Close()

	assert.True(t, bus.Authorized())
}

func TestBusHelloUnauthorized(t *testing.T) {
	srv := fakeDaemon(t, false)
	defer srv.Close()

	bus, err := Dial(wsURL(srv), time.Second, nil)
	require.NoError(t, err)
	defer bus.Close()

	assert.False(t, bus.Authorized())
}

func TestBusSearchAndPlayKeepsQueryVerbatim(t *testing.T) {
	srv := fakeDaemon(t, true)
	defer srv.Close()

	bus, err := Dial(wsURL(srv), time.Second, nil)
	require.NoError(t, err)
	defer bus.Close()

	ok, msg := bus.SearchAndPlay(context.Background(), "Моргенштерн")
	assert.True(t, ok)
	assert.Contains(t, msg, "Моргенштерн", "query must reach the player unmodified")
}

func TestBusCallAfterClose(t *testing.T) {
	srv := fakeDaemon(t, true)
	bus, err := Dial(wsURL(srv), time.Second, nil)
	require.NoError(t, err)
	srv.Close()
	bus.Close()

	ok, msg := bus.Play(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "player unavailable")
}

func TestBusDialBadURL(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/nowhere", 100*time.Millisecond, nil)
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	var p Controls = Unavailable{}
	assert.False(t, p.Authorized())
	ok, msg := p.SearchAndPlay(context.Background(), "x")
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}
