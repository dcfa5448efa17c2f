package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512 * 1024
)

// Client is one connected websocket viewer.
type Client struct {
	id string

	hub *Hub

	conn *websocket.Conn

	send chan *Message
}

// SubscribeRequest is sent by a client to join one or more channels.
type SubscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// UnsubscribeRequest is sent by a client to leave one or more channels.
type UnsubscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// NewClient wraps an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan *Message, 256),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("dashboard: client %s unexpected close: %v", c.id, err)
			}
			break
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			c.sendError("INVALID_MESSAGE", "failed to parse message")
			continue
		}

		switch probe.Type {
		case "subscribe":
			c.handleSubscribe(raw)
		case "unsubscribe":
			c.handleUnsubscribe(raw)
		case "pong":
		default:
			log.Printf("dashboard: client %s sent unknown message type %q", c.id, probe.Type)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleSubscribe(raw []byte) {
	var req SubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Channels) == 0 {
		c.sendError("INVALID_SUBSCRIBE", "at least one channel is required")
		return
	}

	c.hub.Subscribe(c, req.Channels)

	ack := &Message{
		Type:      "ack",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      map[string]any{"subscribed_channels": req.Channels},
	}
	select {
	case c.send <- ack:
	default:
		log.Printf("dashboard: client %s send buffer full, dropped ack", c.id)
	}
}

func (c *Client) handleUnsubscribe(raw []byte) {
	var req UnsubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Channels) == 0 {
		c.sendError("INVALID_UNSUBSCRIBE", "at least one channel is required")
		return
	}
	c.hub.Unsubscribe(c, req.Channels)
}

func (c *Client) sendError(code, message string) {
	errMsg := &Message{
		Type:      "error",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Error:     &ErrorDetails{Code: code, Message: message},
	}
	select {
	case c.send <- errMsg:
	default:
		log.Printf("dashboard: client %s send buffer full, dropped error", c.id)
	}
}

// Run starts the client's read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}
