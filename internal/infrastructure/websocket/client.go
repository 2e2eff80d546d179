package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"oysloe/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// Client is one websocket connection. Writes go through the send buffer and WritePump.
type Client struct {
	id     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Done() <-chan struct{} { return c.done }

// Deliver queues payload without blocking. A closed client swallows frames.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) SendJSON(v interface{}) bool {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode frame for %s: %v", c.id, err)
		return true
	}
	return c.Deliver(b)
}

// Close asks WritePump to flush, send a close frame with code and stop.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
	})
}

// ReadPump reads text frames into handle until the connection fails or closes.
// onClose runs once when the loop exits.
func (c *Client) ReadPump(handle func(data []byte), onClose func()) {
	defer func() {
		c.Close(websocket.CloseNormalClosure, "")
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for %s: %v", c.UserID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// WritePump owns all data writes to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeText),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) write(message []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// flush writes frames already queued so persisted messages are not dropped at close.
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Reject closes a freshly upgraded connection that never became a session.
func Reject(conn *websocket.Conn, code int, text string) {
	// Control frame payloads are capped at 125 bytes, two of which carry the code.
	if len(text) > 120 {
		text = text[:120]
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	conn.Close()
}
