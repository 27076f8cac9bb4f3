package mcp

import (
	"context"
	"errors"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narration-lab/internal/logging"
)

// ClientWrapper provides a small helper to connect to an MCP server over
// websocket or a spawned command and manage the client session lifecycle.
type ClientWrapper struct {
	client          *sdk.Client
	session         *sdk.ClientSession
	keepaliveCancel context.CancelFunc
	mu              sync.Mutex
}

// ErrNotConnected is returned by calls made before a Connect method.
var ErrNotConnected = errors.New("mcp client is not connected")

// NewClientWrapper creates a new wrapper with the given name/version.
func NewClientWrapper(name, version string) *ClientWrapper {
	impl := &sdk.Implementation{Name: name, Version: version}
	c := sdk.NewClient(impl, nil)
	return &ClientWrapper{client: c}
}

// ConnectWebSocket connects to the MCP server websocket endpoint and creates
// a session. http(s) URLs are rewritten to ws(s).
func (w *ClientWrapper) ConnectWebSocket(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	if err := w.connect(ctx, NewWebSocketTransport(conn)); err != nil {
		_ = conn.Close()
		return err
	}
	logging.Infow("mcp: client connected", "url", u.String())
	return nil
}

// ConnectCommand spawns a local MCP server process and talks to it over
// stdio.
func (w *ClientWrapper) ConnectCommand(ctx context.Context, command string, args ...string) error {
	if command == "" {
		return errors.New("command is required")
	}
	if err := w.connect(ctx, &sdk.CommandTransport{Command: exec.Command(command, args...)}); err != nil {
		return err
	}
	logging.Infow("mcp: command server started", "command", command, "args", args)
	return nil
}

func (w *ClientWrapper) connect(ctx context.Context, transport sdk.Transport) error {
	sess, err := w.client.Connect(ctx, transport, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = sess
	kaCtx, cancel := context.WithCancel(context.Background())
	if prev := w.keepaliveCancel; prev != nil {
		prev()
	}
	w.keepaliveCancel = cancel
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				_ = sess.Ping(kaCtx, nil)
			}
		}
	}()
	return nil
}

func (w *ClientWrapper) current() (*sdk.ClientSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return nil, ErrNotConnected
	}
	return w.session, nil
}

// ListTools returns the tools advertised by the server.
func (w *ClientWrapper) ListTools(ctx context.Context) ([]*sdk.Tool, error) {
	sess, err := w.current()
	if err != nil {
		return nil, err
	}
	res, err := sess.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CallTool invokes name with args.
func (w *ClientWrapper) CallTool(ctx context.Context, name string, args map[string]any) (*sdk.CallToolResult, error) {
	sess, err := w.current()
	if err != nil {
		return nil, err
	}
	return sess.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
}

func (w *ClientWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keepaliveCancel != nil {
		w.keepaliveCancel()
		w.keepaliveCancel = nil
	}
	if w.session == nil {
		return nil
	}
	err := w.session.Close()
	w.session = nil
	return err
}
