package ipc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "talkie.sock")

	got := make(chan ControlMessage, 1)
	srv, err := StartServer(sock, func(msg ControlMessage) { got <- msg }, nil)
	require.NoError(t, err)
	defer srv.Close()

	require.NoError(t, SendCommand(sock, "mode", "auto"))

	select {
	case msg := <-got:
		assert.Equal(t, "mode", msg.Cmd)
		assert.Equal(t, "auto", msg.Arg)
	case <-time.After(time.Second):
		t.Fatal("command never arrived")
	}
}

func TestSendWithoutDaemon(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "gone.sock")
	assert.Error(t, SendCommand(sock, "interrupt", ""))
}

func TestCloseStopsServer(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "talkie.sock")

	srv, err := StartServer(sock, func(ControlMessage) {}, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	assert.Error(t, SendCommand(sock, "start", ""), "socket is gone after close")
}

func TestStaleSocketReplaced(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "talkie.sock")

	first, err := StartServer(sock, func(ControlMessage) {}, nil)
	require.NoError(t, err)
	first.Close()

	got := make(chan ControlMessage, 1)
	second, err := StartServer(sock, func(msg ControlMessage) { got <- msg }, nil)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, SendCommand(sock, "interrupt", ""))
	select {
	case msg := <-got:
		assert.Equal(t, "interrupt", msg.Cmd)
	case <-time.After(time.Second):
		t.Fatal("command never arrived")
	}
}
