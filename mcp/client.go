// Package mcp implements the client side of the tool-server protocol:
// JSON-RPC 2.0 over the stdio of a spawned subprocess, one message per line.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
)

const (
	protocolVersion    = "0.1.0"
	clientName         = "gomini"
	clientVersion      = "1.0.0"
	defaultCallTimeout = 10 * time.Second
)

// ErrTimeout is reported when a request receives no correlated response
// within the call timeout. The connection is left running; a single timeout
// is not grounds for teardown.
var ErrTimeout = stderrors.New("mcp: request timed out")

// ToolError is a failure reported by the tool itself (a result flagged
// isError), as opposed to a transport or protocol fault.
type ToolError struct {
	Text string
}

func (e *ToolError) Error() string {
	return e.Text
}

// Client manages one connection to a tool server subprocess. Requests may be
// issued from any goroutine; responses are matched strictly by id, so
// out-of-order delivery from the server is fine.
type Client struct {
	Name string

	// Timeout bounds each request/response round trip. Exposed so tests can
	// shrink it; zero means the 10 second default.
	Timeout time.Duration

	command string
	args    []string

	transport *transport

	// mu guards nextID and pending against the read loop and concurrent
	// callers. Ids are never reused, even across reconnect attempts on the
	// same Client.
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *rpcResponse

	tools     []ToolInfo
	connected bool
}

// NewClient prepares a client for the given server command. Nothing is
// spawned until Connect.
func NewClient(name, command string, args ...string) *Client {
	return &Client{
		Name:    name,
		command: command,
		args:    args,
		pending: make(map[int64]chan *rpcResponse),
	}
}

// Connect spawns the server process and performs the handshake: initialize,
// the initialized notification, then tool discovery. The client is usable
// only after Connect returns nil.
func (c *Client) Connect(ctx context.Context) error {
	t, err := spawn(c.Name, c.command, c.args)
	if err != nil {
		return err
	}
	c.transport = t
	go c.readLoop()

	initParams := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	if _, err := c.call(ctx, "initialize", initParams); err != nil {
		c.Close()
		return errors.Wrapf(err, "initialize handshake with '%s' failed", c.Name)
	}

	if err := c.notify("notifications/initialized", map[string]any{}); err != nil {
		c.Close()
		return errors.Wrapf(err, "failed to send initialized notification to '%s'", c.Name)
	}

	raw, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		c.Close()
		return errors.Wrapf(err, "tool discovery on '%s' failed", c.Name)
	}
	var list listToolsResult
	if err := json.Unmarshal(raw, &list); err != nil {
		c.Close()
		return errors.Wrapf(err, "malformed tools/list result from '%s'", c.Name)
	}

	c.mu.Lock()
	c.tools = list.Tools
	c.connected = true
	c.mu.Unlock()

	log.Default.Infof("mcp[%s]: connected, %d tools discovered", c.Name, len(list.Tools))
	return nil
}

// Connected reports whether the handshake has completed.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Tools returns the discovered tool list, in server order.
func (c *Client) Tools() []ToolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tools
}

// HasTool reports whether the server advertises the named tool.
func (c *Client) HasTool(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// CallTool invokes the named tool on the server. The first text content item
// of the result is returned; a result with no text content is stringified
// whole. A result flagged isError comes back as an error carrying the text.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return string(raw), nil
	}

	text := ""
	for _, item := range result.Content {
		if item.Type == "text" {
			text = item.Text
			break
		}
	}
	if text == "" {
		text = string(raw)
	}
	if result.IsError {
		return "", &ToolError{Text: text}
	}
	return text, nil
}

// Close terminates the server process. Outstanding requests resolve through
// their timeout; they are not cancelled explicitly.
func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	log.Default.Infof("mcp[%s]: terminating server", c.Name)
	return t.close()
}

// call sends one request and blocks for its correlated response. The
// response slot is registered before the bytes hit the wire, so a reply
// cannot race past its waiter.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	slot := make(chan *rpcResponse, 1)
	c.pending[id] = slot
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.transport.writeMessage(req); err != nil {
		c.removePending(id)
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-slot:
		if resp.Error != nil {
			return nil, errors.Wrapf(resp.Error, "'%s' request failed", method)
		}
		return resp.Result, nil
	case <-timer.C:
		c.removePending(id)
		return nil, errors.Wrapf(ErrTimeout, "no response to '%s' from '%s' within %s", method, c.Name, timeout)
	case <-ctx.Done():
		// The wait is abandoned but the connection stays up; other slots may
		// still be outstanding.
		c.removePending(id)
		return nil, ctx.Err()
	}
}

// notify sends a notification; no response is expected.
func (c *Client) notify(method string, params any) error {
	return c.transport.writeMessage(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) removePending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop drains the server's stdout for the connection's lifetime. It only
// fulfills response slots; it never touches conversation state. Malformed
// lines are dropped, as are messages with no id or an unknown id. The loop
// exits when the pipe closes (server exit or Close); any requests still
// pending at that point resolve through their timeout.
func (c *Client) readLoop() {
	for {
		line, err := c.transport.readLine()
		if err != nil {
			log.Default.Debugf("mcp[%s]: read loop ended: %v", c.Name, err)
			return
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Default.Debugf("mcp[%s]: dropping malformed line: %s", c.Name, line)
			continue
		}
		if resp.ID == nil {
			// Server-initiated notification; not handled.
			continue
		}

		c.mu.Lock()
		slot, ok := c.pending[*resp.ID]
		if ok {
			delete(c.pending, *resp.ID)
		}
		c.mu.Unlock()
		if ok {
			slot <- &resp
		}
	}
}
