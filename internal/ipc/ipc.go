// Package ipc is the daemon's control plane: one-shot JSON commands over a
// unix socket, sent by talkie-ctl or any desktop keybinding.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

const DefaultSocketPath = "/tmp/talkie.sock"

// ControlMessage is one command. Arg carries the parameter for commands
// that take one, e.g. "mode auto".
type ControlMessage struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

// Server accepts control connections until closed.
type Server struct {
	ln  net.Listener
	log *slog.Logger
}

// StartServer listens on path, replacing a stale socket left by a previous
// run, and invokes handler for every decoded command.
func StartServer(path string, handler func(ControlMessage), log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s := &Server{ln: ln, log: log}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn("ipc accept failed", "err", err)
				continue
			}
			go s.handleConn(conn, handler)
		}
	}()

	return s, nil
}

func (s *Server) handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.log.Warn("ipc bad message", "err", err)
		return
	}
	handler(msg)
}

// Close stops accepting commands and removes the socket.
func (s *Server) Close() error {
	err := s.ln.Close()
	if addr, ok := s.ln.Addr().(*net.UnixAddr); ok {
		os.Remove(addr.Name)
	}
	return err
}

// SendCommand delivers one command to a running daemon.
func SendCommand(path, cmd, arg string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	return json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd, Arg: arg})
}
