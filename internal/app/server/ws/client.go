package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Client is one live connection handle bound to an announced identity. Writes
// go through a buffered channel drained by a single writer goroutine; once
// the client closes, Send becomes a silent no-op so emits to a stale handle
// never surface as errors.
type Client struct {
	ctx      context.Context
	cancel   context.CancelFunc
	ws       *WebSocket
	id       string
	identity string
	out      chan []byte
	once     sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, identity string) *Client {
	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		ctx:      ctx,
		cancel:   cancel,
		ws:       ws,
		id:       uuid.NewString(),
		identity: identity,
		out:      make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *Client) ID() string       { return c.id }
func (c *Client) Identity() string { return c.identity }

func (c *Client) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return nil // stale handle, swallowed
	case <-ctx.Done():
		return ctx.Err()
	case c.out <- data:
		return nil
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *Client) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
