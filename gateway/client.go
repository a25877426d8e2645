package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"homehub/logger"
)

// Client is one websocket connection to the device gateway
type Client struct {
	url        string
	conn       *websocket.Conn
	header     http.Header
	writeMu    sync.Mutex
	pingCancel context.CancelFunc
	log        *logger.Logger
}

// NewClient creates a new gateway client. An empty token sends no
// Authorization header.
func NewClient(url string, authToken string, log *logger.Logger) *Client {
	header := make(http.Header)
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}
	header.Set("User-Agent", "homehub")

	return &Client{
		url:    url,
		header: header,
		log:    logger.OrNop(log),
	}
}

// Connect establishes the websocket connection
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	c.log.Info("✅ Connected to device gateway", "url", c.url)
	return nil
}

// StartPing sends a ping frame every interval until Close
func (c *Client) StartPing(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if err := c.WriteFrame(Frame{Type: FramePing, At: t}); err != nil {
					c.log.Warn("⚠️  Failed to send gateway ping", "error", err)
					return
				}
			}
		}
	}()
}

// WriteFrame encodes and sends one frame. Safe for concurrent use.
func (c *Client) WriteFrame(f Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", f.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// ReadFrame blocks for the next frame. A zero readTimeout waits forever.
func (c *Client) ReadFrame(readTimeout time.Duration) (Frame, error) {
	if c.conn == nil {
		return Frame{}, fmt.Errorf("connection is nil")
	}
	if readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	if msgType != websocket.BinaryMessage {
		return Frame{}, errSkipFrame
	}
	f, err := UnmarshalFrame(data)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errSkipFrame, err)
	}
	return f, nil
}

// Close stops the pinger and closes the connection
func (c *Client) Close() error {
	if c.pingCancel != nil {
		c.pingCancel()
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
