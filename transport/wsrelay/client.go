// SPDX-License-Identifier: LGPL-3.0-or-later

package wsrelay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kktp-network/kktp/transport"
)

// Client implements transport.Network over one persistent relay
// connection. Grounded on the teacher's WSTransport
// (pkg/agent/transport/websocket/client.go): a dialer with configurable
// timeouts, a background reader goroutine, and pending-request
// bookkeeping — generalized here from one pending response per message
// ID to one pending publish-ack per not-yet-echoed payload, since the
// relay has no concept of request/response pairing.
type Client struct {
	url                                    string
	dialTimeout, readTimeout, writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn

	connMu    sync.RWMutex
	connected bool

	historyMu sync.Mutex
	history   []transport.Payload

	incoming chan transport.Payload

	pendingMu sync.Mutex
	pending   map[string]chan string // payload data -> assigned hash
}

// NewClient builds a relay client bound to url (e.g. "ws://host/relay").
// Connect must be called before Publish/Scan.
func NewClient(url string) *Client {
	return &Client{
		url:          url,
		dialTimeout:  10 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		incoming:     make(chan transport.Payload, DefaultHistorySize),
		pending:      make(map[string]chan string),
	}
}

// Connect dials the relay and starts the background reader.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("wsrelay: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("wsrelay: dial failed: %w", err)
	}
	c.conn = conn
	c.setConnected(true)
	go c.readLoop()
	return nil
}

// Publish sends payload to the relay and waits for the server to echo
// it back with its assigned chain hash.
func (c *Client) Publish(ctx context.Context, payload string) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", fmt.Errorf("wsrelay: publish: %w", err)
	}

	ack := make(chan string, 1)
	c.pendingMu.Lock()
	c.pending[payload] = ack
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, payload)
		c.pendingMu.Unlock()
	}()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("wsrelay: publish: not connected")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return "", fmt.Errorf("wsrelay: publish: %w", err)
	}
	if err := conn.WriteJSON(frame{Data: payload}); err != nil {
		c.setConnected(false)
		return "", fmt.Errorf("wsrelay: publish: write: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case hash := <-ack:
		return hash, nil
	case <-time.After(c.writeTimeout):
		return "", fmt.Errorf("wsrelay: publish: ack timeout")
	}
}

// Scan replays any locally buffered backlog after StartHash, then
// blocks on the live relay stream until OnMatch stops the walk,
// MaxSeconds elapses, or Stop closes.
func (c *Client) Scan(ctx context.Context, opts transport.ScanOptions) error {
	deadline := time.Now().Add(time.Duration(opts.MaxSeconds * float64(time.Second)))

	c.historyMu.Lock()
	start := 0
	if opts.StartHash != "" {
		for i, p := range c.history {
			if p.Hash == opts.StartHash {
				start = i + 1
				break
			}
		}
	}
	backlog := append([]transport.Payload(nil), c.history[start:]...)
	c.historyMu.Unlock()

	for _, p := range backlog {
		if !matchesAny(p.Data, opts.Prefixes) {
			continue
		}
		if opts.OnMatch != nil && opts.OnMatch(p) {
			return nil
		}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-opts.Stop:
			return nil
		case p := <-c.incoming:
			if !matchesAny(p.Data, opts.Prefixes) {
				continue
			}
			if opts.OnMatch != nil && opts.OnMatch(p) {
				return nil
			}
		case <-time.After(remaining):
			return nil
		}
	}
}

func (c *Client) readLoop() {
	defer c.setConnected(false)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return
		}
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		c.pendingMu.Lock()
		if ack, ok := c.pending[f.Data]; ok {
			select {
			case ack <- f.Hash:
			default:
			}
		}
		c.pendingMu.Unlock()

		p := transport.Payload{Hash: f.Hash, Data: f.Data, PublishedAt: f.PublishedAt}
		c.historyMu.Lock()
		c.history = append(c.history, p)
		if len(c.history) > DefaultHistorySize {
			c.history = c.history[len(c.history)-DefaultHistorySize:]
		}
		c.historyMu.Unlock()

		select {
		case c.incoming <- p:
		default:
			// Slow consumer; Scan callers relying on the live stream can
			// still catch up via the history backlog on their next call.
		}
	}
}

// Close terminates the relay connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	c.setConnected(false)
	return err
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.isConnected() {
		return nil
	}
	return c.Connect(ctx)
}

func (c *Client) isConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.connected = v
}

func matchesAny(data string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(data, p) {
			return true
		}
	}
	return false
}
