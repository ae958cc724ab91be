// README: One websocket connection: buffered writes, ping keep-alive, inbound dispatch.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dot/internal/types"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

type Client struct {
	UserID types.ID
	Role   types.Role

	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

func newClient(userID types.ID, role types.Role, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// shutdown tells the write pump to finish. The send channel is never closed:
// a sender that loses the race against a disconnect selects on done instead,
// so a late delivery is a no-op, never a panic.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump owns all writes to the connection. It drains the send channel and
// keeps the connection alive with pings; it returns when the client is shut
// down or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns all reads. Each inbound envelope goes to handle; the pump
// returns on read error, which includes a missed pong deadline.
func (c *Client) readPump(handle func(*Client, Envelope)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		handle(c, env)
	}
}
