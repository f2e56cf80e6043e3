package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than PongWait.
	pingPeriod = (PongWait * 9) / 10

	// Maximum frame size accepted from the peer.
	MaxMessageSize = 64 * 1024

	// DefaultSendBuffer is the outbound queue length per connection.
	DefaultSendBuffer = 256
)

// ErrSlowConsumer is returned by Send when the outbound queue is full. The
// connection is closed when this happens.
var ErrSlowConsumer = errors.New("send buffer full")

// Client is a live websocket connection scoped to one conversation. Outbound
// frames are queued and written by a single write pump, so frames reach the
// peer in the order Send accepted them.
type Client struct {
	id             string
	userID         string
	conversationID string
	conn           *websocket.Conn
	logger         *log.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps conn. Call Start to begin writing.
func NewClient(conn *websocket.Conn, conversationID, userID string, buffer int, logger *log.Logger) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	id := uuid.NewString()
	return &Client{
		id:             id,
		userID:         userID,
		conversationID: conversationID,
		conn:           conn,
		send:           make(chan []byte, buffer),
		done:           make(chan struct{}),
		logger: logger.With(
			"conversationID", conversationID,
			"userID", userID,
			"connectionID", id,
		),
	}
}

func (c *Client) ID() string             { return c.id }
func (c *Client) UserID() string         { return c.userID }
func (c *Client) ConversationID() string { return c.conversationID }

// Done is closed once the connection has been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Start launches the write pump.
func (c *Client) Start() {
	go c.writePump()
}

// Send queues payload without blocking. A full queue evicts the client.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn("Closing slow client")
		go c.Close()
		return ErrSlowConsumer
	}
}

// Close stops the write pump and closes the socket. It is safe to call
// more than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.conn.Close()
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", "err", err)
				return
			}
		}
	}
}
