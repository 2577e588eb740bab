package dealer

import (
	"context"
	"sync"
)

// Pipe returns two connected in-memory dealer ends. Frames sent on one end
// arrive on the other. Closing either end closes both directions. Used by
// engine tests and by local loopback sessions that have no backend.
func Pipe() (Conn, Conn) {
	ab := make(chan Message, 16)
	ba := make(chan Message, 16)
	done := make(chan struct{})
	var once sync.Once
	closeBoth := func() { once.Do(func() { close(done) }) }

	a := &pipeConn{in: ba, out: ab, done: done, close: closeBoth}
	b := &pipeConn{in: ab, out: ba, done: done, close: closeBoth}
	return a, b
}

// PipeDialer hands out a fixed Conn once; further dials fail.
type PipeDialer struct {
	mu   sync.Mutex
	conn Conn
}

// NewPipeDialer wraps an already-connected end.
func NewPipeDialer(conn Conn) *PipeDialer {
	return &PipeDialer{conn: conn}
}

// Dial implements Dialer.
func (d *PipeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil, ErrConnClosed
	}
	conn := d.conn
	d.conn = nil
	return conn, nil
}

type pipeConn struct {
	in    <-chan Message
	out   chan<- Message
	done  chan struct{}
	close func()
}

func (c *pipeConn) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		// Drain frames already queued before the close.
		select {
		case msg := <-c.in:
			return msg, nil
		default:
			return Message{}, ErrConnClosed
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (c *pipeConn) Send(ctx context.Context, msg Message) error {
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Close() error {
	c.close()
	return nil
}
