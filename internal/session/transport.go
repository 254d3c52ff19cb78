package session

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is the opaque bidirectional message channel the probe talks
// through: it sends JSON text frames and yields inbound text frames or
// an error once the peer closes. Tests substitute in-memory fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// DialFunc opens a new transport connection to the exchange.
type DialFunc func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	*websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

// Dial opens a secure WebSocket connection using the default dialer.
func Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{Conn: conn}, nil
}
