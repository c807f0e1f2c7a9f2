// Package cdp is a minimal Chrome DevTools Protocol client.
//
// A Client owns one websocket connection to a page target and issues one
// command at a time, matching results to commands strictly by id. Anything
// else that arrives on the socket (events, late results of commands that
// already timed out) is dropped.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/gorilla/websocket"
)

const (
	defaultReadTimeout      = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	frameBuffer             = 64
)

// Evaluator evaluates a JavaScript expression in a page.
//
// A nil error with an absent Value means the expression could not be
// evaluated this time (timeout, protocol error, script exception). A
// non-nil error means the channel is gone or ctx is done.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string) (Value, error)
}

// Command is an outbound frame.
type Command struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// message is any inbound frame: a result, an error result, or an event.
type message struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client is a connection to one DevTools target.
type Client struct {
	url          string
	conn         *websocket.Conn
	dialer       *websocket.Dialer
	logger       *slog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration

	nextID int64

	// frames is fed by readLoop and closed when the socket fails.
	// readErr is written before frames is closed.
	frames  chan message
	readErr error

	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReadTimeout bounds how long Send waits for a matching result.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// Dial connects to the websocket debugger URL of a target.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Client, error) {
	c := &Client{
		url:          wsURL,
		dialer:       &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		frames:       make(chan message, frameBuffer),
		closing:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, &ConnectionError{URL: wsURL, Err: err}
	}
	c.conn = conn
	go c.readLoop()

	c.logger.Debug("cdp: connected", "url", wsURL)
	return c, nil
}

// readLoop is the only reader of the socket. gorilla/websocket leaves a
// connection unusable after a read deadline expires, so Send enforces its
// timeout on the frames channel instead of on the socket.
func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("cdp: dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}
		select {
		case c.frames <- m:
		case <-c.closing:
			return
		}
	}
}

// LastID returns the id of the most recent command.
func (c *Client) LastID() int64 { return c.nextID }

func (c *Client) closed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Send issues method with params and waits for its result.
//
// It returns ErrTimeout if the result does not arrive in time, a
// *ProtocolError if the result carries an error object, and an error
// wrapping ErrConnectionLost if the socket fails.
func (c *Client) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed() {
		return nil, ErrClosed
	}

	c.nextID++
	id := c.nextID

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	if err := c.conn.WriteJSON(Command{ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrConnectionLost, method, err)
	}

	timer := time.NewTimer(c.readTimeout)
	defer timer.Stop()

	for {
		select {
		case m, ok := <-c.frames:
			if !ok {
				if c.closed() {
					return nil, ErrClosed
				}
				return nil, fmt.Errorf("%w: %v", ErrConnectionLost, c.readErr)
			}
			if m.ID != id {
				if m.ID == 0 {
					c.logger.Debug("cdp: dropping event", "method", m.Method)
				} else {
					c.logger.Debug("cdp: dropping uncorrelated result", "id", m.ID, "want", id)
				}
				continue
			}
			if m.Error != nil {
				return nil, &ProtocolError{
					Method:  method,
					Code:    m.Error.Code,
					Message: m.Error.Message,
					Data:    m.Error.Data,
				}
			}
			return m.Result, nil
		case <-timer.C:
			return nil, fmt.Errorf("%w: %s (id %d) after %v", ErrTimeout, method, id, c.readTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Evaluate runs expression in the page and returns its value.
func (c *Client) Evaluate(ctx context.Context, expression string) (Value, error) {
	params := runtime.Evaluate(expression).WithReturnByValue(true)
	raw, err := c.Send(ctx, runtime.CommandEvaluate, params)
	if err != nil {
		if IsFatal(err) {
			return Absent(), err
		}
		c.logger.Warn("cdp: evaluate failed", "error", err)
		return Absent(), nil
	}

	var ret runtime.EvaluateReturns
	if err := json.Unmarshal(raw, &ret); err != nil {
		c.logger.Warn("cdp: malformed evaluate result", "error", err)
		return Absent(), nil
	}
	if ret.ExceptionDetails != nil {
		c.logger.Warn("cdp: script raised", "error", ret.ExceptionDetails.Error())
		return Absent(), nil
	}
	return FromRemoteObject(ret.Result), nil
}

// Close releases the connection. It is safe to call more than once and
// after the connection has failed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		if c.conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
		c.logger.Debug("cdp: closed", "url", c.url)
	})
	return c.closeErr
}
