// Package transport is the websocket collaborator: it feeds inbound
// messages, acks, failures and presence events into the session
// controller and carries outbound send payloads to the server.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"

	"chatcore/pkg/logger"
	"chatcore/pkg/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Options tunes the client. SendRPS/SendBurst pace outbound sends; zero
// values fall back to 5 rps / 10 burst.
type Options struct {
	SendRPS   float64
	SendBurst int
}

// Client wraps a websocket connection and coordinates outbound writes via
// a bounded channel. It implements session.Outbound.
type Client struct {
	conn    *websocket.Conn
	sink    Sink
	limiter *rate.Limiter
	send    chan []byte
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to the chat server and starts the read and write loops.
// Events decoded off the wire are dispatched into sink.
func Dial(ctx context.Context, url string, sink Sink, opts Options) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	rps := opts.SendRPS
	if rps <= 0 {
		rps = 5
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 10
	}
	c := &Client{
		conn:    conn,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		send:    make(chan []byte, 128),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	logger.Info("transport_connected", "url", url)
	return c, nil
}

// Send encodes the outbound payload and enqueues it for delivery. It
// never blocks on the network: a full buffer or an exhausted rate budget
// returns an error and the caller's message fails fast.
func (c *Client) Send(out session.OutboundMessage) error {
	select {
	case <-c.closed:
		return errors.New("transport closed")
	default:
	}
	if !c.limiter.Allow() {
		return errors.New("outbound send rate exceeded")
	}
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if err := json.NewEncoder(bb).Encode(out); err != nil {
		return err
	}
	payload := append([]byte(nil), bb.B...)
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.New("outbound send buffer full")
	}
}

// Close terminates the connection and stops both loops.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = c.conn.Close()
		logger.Info("transport_closed")
	})
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				logger.Warn("transport_read_failed", "error", err)
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("transport_frame_invalid", "error", err)
			continue
		}
		if err := Dispatch(c.sink, ev); err != nil {
			logger.Error("transport_dispatch_failed", "type", string(ev.Type), "error", err)
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				logger.Warn("transport_write_failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}
