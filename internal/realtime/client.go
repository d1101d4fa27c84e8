package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

var clientCounter uint64

var ErrClientClosed = errors.New("realtime: client closed")

// Client wraps one WebSocket connection. All writes go through writeMux;
// gofiber/websocket connections are not safe for concurrent writers.
type Client struct {
	conn      *websocket.Conn
	writeMux  sync.Mutex
	closeChan chan struct{}
	closed    bool

	ID  string
	log *slog.Logger
}

func NewClient(conn *websocket.Conn, kind string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	id := fmt.Sprintf("%s-%d", kind, atomic.AddUint64(&clientCounter, 1))
	return &Client{
		conn:      conn,
		closeChan: make(chan struct{}),
		ID:        id,
		log:       log.With(slog.String("component", "ws"), slog.String("client", id)),
	}
}

// KeepAlive installs the pong handler and starts the ping loop. It returns
// immediately; the loop ends when the client is closed.
func (c *Client) KeepAlive() {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.writeMux.Lock()
				if c.closed {
					c.writeMux.Unlock()
					return
				}
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				err := c.conn.WriteMessage(websocket.PingMessage, nil)
				c.writeMux.Unlock()
				if err != nil {
					c.log.Debug("ping failed", slog.String("err", err.Error()))
					c.Close()
					return
				}
			case <-c.closeChan:
				return
			}
		}
	}()
}

func (c *Client) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(b)
}

// Write sends a text frame. A failed write closes the client.
func (c *Client) Write(msg []byte) error {
	c.writeMux.Lock()
	if c.closed {
		c.writeMux.Unlock()
		return ErrClientClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteMessage(websocket.TextMessage, msg)
	c.writeMux.Unlock()

	if err != nil {
		c.log.Warn("write failed", slog.String("err", err.Error()))
		c.Close()
	}
	return err
}

// ReadJSON blocks for the next client frame.
func (c *Client) ReadJSON(v any) error {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}

// Drain reads and discards frames until the peer goes away.
func (c *Client) Drain() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				c.log.Info("unexpected close", slog.String("err", err.Error()))
			}
			return
		}
	}
}

func (c *Client) Done() <-chan struct{} { return c.closeChan }

func (c *Client) Close() {
	c.writeMux.Lock()
	if c.closed {
		c.writeMux.Unlock()
		return
	}
	c.closed = true
	close(c.closeChan)
	c.writeMux.Unlock()

	_ = c.conn.Close()
}
