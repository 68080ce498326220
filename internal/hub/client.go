package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shilo-maker/solupresenter-sub012/internal/config"
	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// Client wraps a websocket connection with a buffered writer goroutine.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a client around an upgraded websocket connection.
func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, 256),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Enqueue hands data to the writer without blocking. A full buffer means the
// viewer is too slow; the event is dropped for this connection only.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}

// SendEvent marshals and enqueues an event for this connection only.
func (c *Client) SendEvent(evt domain.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldConnID, c.id).Str(log.FieldEvent, evt.Type).Msg("failed to marshal event")
		return
	}
	if !c.Enqueue(data) {
		log.L().Debug().Str(log.FieldConnID, c.id).Str(log.FieldEvent, evt.Type).Msg("send buffer full, event dropped")
	}
}

// ReadPump reads messages until the connection drops and feeds them to the
// handler. It must run in the connection's own goroutine.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Debug().Err(err).Str(log.FieldConnID, c.id).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// pings. It must run in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
