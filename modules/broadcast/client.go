package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

const writeWait = 10 * time.Second

// Transport errors returned by Hub.Send.
var (
	ErrSendQueueFull    = errors.New("send queue full")
	ErrConnectionClosed = errors.New("connection closed")
)

// Conn is the subset of *websocket.Conn used by a Client.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ClientConfig bounds a client's resources.
type ClientConfig struct {
	SendQueueSize  int
	MaxMessageSize int64
	// IdleTimeout closes the connection when neither a frame nor a pong
	// arrives in time. Pings are sent at 9/10 of it.
	IdleTimeout time.Duration
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendQueueSize:  256,
		MaxMessageSize: 64 * 1024,
		IdleTimeout:    60 * time.Second,
	}
}

// Client is one WebSocket connection with its bounded outbound queue.
type Client struct {
	ID     string
	conn   Conn
	cfg    ClientConfig
	logger types.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	done chan struct{}
}

// NewClient wraps conn. Call WritePump in its own goroutine and ReadPump on
// the connection's goroutine.
func NewClient(id string, conn Conn, cfg ClientConfig, logger types.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaults.SendQueueSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}

	return &Client{
		ID:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("connectionID", id),
		send:   make(chan []byte, cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue queues data for the write pump without blocking.
func (c *Client) Enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops accepting frames. The write pump drains what is queued, sends a
// close frame and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Done is closed when the write pump has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump delivers every inbound text frame to handle until the connection
// fails, idles out or is closed by the peer.
func (c *Client) ReadPump(handle func(data []byte)) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Connection closed by peer")
			} else {
				c.logger.Info("Connection read ended", "error", err, "readLimit", c.cfg.MaxMessageSize)
			}
			return
		}
		c.extendDeadline()

		if messageType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *Client) extendDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
		c.logger.Debug("Failed to set read deadline", "error", err)
	}
}

// WritePump writes queued frames one WebSocket message each and pings the
// peer periodically. It returns after Close or on the first write failure.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.IdleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
