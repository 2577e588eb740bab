package dealer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer connects to a dealer endpoint over websocket.
type WebsocketDialer struct {
	// URL is the full websocket endpoint, e.g. wss://host/connect.
	URL string
	// HandshakeTimeout bounds the dial; zero means 30s.
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dealer dial %s: %w", d.URL, err)
	}
	return newWSConn(conn), nil
}

type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once

	recv chan Message
	errs chan error
	done chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn: conn,
		recv: make(chan Message, 16),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// readLoop owns all reads; gorilla allows at most one concurrent reader.
func (c *wsConn) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case c.errs <- err:
			default:
			}
			close(c.recv)
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Skip malformed frames rather than killing the session.
			continue
		}
		select {
		case c.recv <- msg:
		case <-c.done:
			close(c.recv)
			return
		}
	}
}

func (c *wsConn) Recv(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-c.recv:
		if !ok {
			select {
			case err := <-c.errs:
				return Message{}, fmt.Errorf("dealer recv: %w", err)
			default:
				return Message{}, ErrConnClosed
			}
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, ErrConnClosed
	}
}

func (c *wsConn) Send(ctx context.Context, msg Message) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
