package protocol

import (
	"fmt"
	"sync"
)

// Client drives the request/response side of the protocol from the host. At
// most one request is in flight at a time; concurrent callers queue on the
// internal mutex.
type Client struct {
	mu   sync.Mutex
	conn *Conn

	// logs is consulted when the connection dies mid-call, so the error can
	// carry the agent's output. May be nil.
	logs func() string
}

// NewClient wraps an authenticated connection. logs, if non-nil, supplies
// agent output for StoppedError messages.
func NewClient(conn *Conn, logs func() string) *Client {
	return &Client{conn: conn, logs: logs}
}

// Call sends req and decodes the result into out (which may be nil for
// requests with no payload). A failed response is returned as the typed error
// it encodes. A dead connection is reported as a StoppedError carrying the
// agent's logs.
func (c *Client) Call(req Request, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(req); err != nil {
		return c.stopped(err)
	}
	var resp Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return c.stopped(err)
	}
	if !resp.OK {
		return DecodeError(resp.Error)
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", req.GetType(), err)
	}
	return nil
}

// Stop tells the agent to exit and closes the connection. Errors are
// swallowed; the agent may already be gone.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.WriteJSON(NewStopRequest())
	var resp Response
	_ = c.conn.ReadJSON(&resp)
	_ = c.conn.Close()
}

// Close closes the connection without sending anything.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) stopped(err error) error {
	logs := ""
	if c.logs != nil {
		logs = c.logs()
	}
	stopErr := NewStoppedError(logs)
	stopErr.Cause = err
	return stopErr
}
