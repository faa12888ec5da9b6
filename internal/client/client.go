// Package client talks to a running go_ayoto server over anet framed TCP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/server"
)

// DefaultTimeout bounds dialing and each exchange.
const DefaultTimeout = 5 * time.Second

// Client sends requests through a single-connection broker.
type Client struct {
	send    func(*[]byte) ([]byte, error)
	closeFn func()
}

// Dial prepares a client for addr. The connection is opened on first use.
func Dial(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, err
		}

		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()

			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, addr, nil)
	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()

	return &Client{
		send: broker.Send,
		closeFn: func() {
			broker.Close()
			pool.Close()
		},
	}
}

// Close releases the broker and its connection.
func (c *Client) Close() {
	c.closeFn()
}

// Do sends req and decodes a successful value into out, which may be nil.
func (c *Client) Do(ctx context.Context, req server.Request, out any) error {
	frame, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	type reply struct {
		raw []byte
		err error
	}
	done := make(chan reply, 1)
	go func() {
		raw, err := c.send(&frame)
		done <- reply{raw, err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return fmt.Errorf("send request: %w", r.err)
	}

	var resp struct {
		Success bool            `json:"success"`
		Value   json.RawMessage `json:"value"`
		Error   string          `json:"error"`
		Code    string          `json:"code"`
	}
	if err := json.Unmarshal(r.raw, &resp); err != nil {
		return errorcodes.ErrParse.Withf("malformed response").Wrap(err)
	}
	if !resp.Success {
		return errorcodes.FromWire(resp.Code, resp.Error)
	}
	if out == nil || len(resp.Value) == 0 {
		return nil
	}

	return json.Unmarshal(resp.Value, out)
}

// List returns every plugin the server has loaded.
func (c *Client) List(ctx context.Context) ([]plugins.Summary, error) {
	var out []plugins.Summary
	if err := c.Do(ctx, server.Request{Op: server.OpList}, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// SetEnabled enables or disables t on the server.
func (c *Client) SetEnabled(ctx context.Context, t dispatch.Target, enabled bool) error {
	op := server.OpDisable
	if enabled {
		op = server.OpEnable
	}

	return c.Do(ctx, server.Request{Backend: t.Backend, Plugin: t.PluginID, Op: op}, nil)
}
