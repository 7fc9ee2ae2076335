package player

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Bus methods understood by the player daemon.
const (
	methodHello         = "hello"
	methodSearchAndPlay = "search_and_play"
	methodPlay          = "play"
	methodPause         = "pause"
	methodNext          = "next"
	methodPrevious      = "previous"
)

type request struct {
	ID     string            `json:"id"`
	Method string            `json:"method"`
	Params map[string]string `json:"params,omitempty"`
}

type response struct {
	ID         string `json:"id"`
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	Authorized bool   `json:"authorized,omitempty"`
}

// Bus is a JSON request/response client over a single websocket to the
// player daemon. One request is in flight at a time, which matches the tool
// executor's single-completion contract.
type Bus struct {
	conn    *websocket.Conn
	timeout time.Duration
	log     *slog.Logger

	mu         sync.Mutex
	authorized bool
}

// Dial connects to the player daemon and performs the hello exchange that
// establishes the authorized flag.
func Dial(wsURL string, timeout time.Duration, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("player bus: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("player bus: dial: %w", err)
	}

	b := &Bus{conn: conn, timeout: timeout, log: log}

	resp, err := b.roundTrip(request{ID: uuid.NewString(), Method: methodHello})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("player bus: hello: %w", err)
	}
	b.authorized = resp.Authorized

	log.Info("connected to player bus", "url", wsURL, "authorized", resp.Authorized)
	return b, nil
}

func (b *Bus) Close() error { return b.conn.Close() }

func (b *Bus) Authorized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authorized
}

func (b *Bus) SearchAndPlay(ctx context.Context, query string) (bool, string) {
	return b.call(ctx, methodSearchAndPlay, map[string]string{"query": query})
}

func (b *Bus) Play(ctx context.Context) (bool, string) { return b.call(ctx, methodPlay, nil) }

func (b *Bus) Pause(ctx context.Context) (bool, string) { return b.call(ctx, methodPause, nil) }

func (b *Bus) Next(ctx context.Context) (bool, string) { return b.call(ctx, methodNext, nil) }

func (b *Bus) Previous(ctx context.Context) (bool, string) { return b.call(ctx, methodPrevious, nil) }

// call never returns an error: protocol-level failure is encoded in the
// (ok, message) pair the model sees.
func (b *Bus) call(ctx context.Context, method string, params map[string]string) (bool, string) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Sprintf("player request cancelled: %v", err)
	}
	resp, err := b.roundTrip(request{ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		b.log.Error("player bus call failed", "method", method, "err", err)
		return false, fmt.Sprintf("player unavailable: %v", err)
	}
	return resp.OK, resp.Message
}

func (b *Bus) roundTrip(req request) (*response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deadline := time.Now().Add(b.timeout)
	if err := b.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := b.conn.WriteJSON(req); err != nil {
		return nil, err
	}

	if err := b.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		var resp response
		if err := b.conn.ReadJSON(&resp); err != nil {
			return nil, err
		}
		if resp.ID == req.ID {
			return &resp, nil
		}
		// Stale reply from an interrupted exchange; drop and keep reading.
		b.log.Debug("dropping mismatched bus reply", "want", req.ID, "got", resp.ID)
	}
}
