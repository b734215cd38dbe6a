package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"
)

// Caller performs a synchronous request/response exchange with the backend.
type Caller interface {
	Call(ctx context.Context, request []byte) ([]byte, error)
}

// Sender delivers a request over a named channel and waits for the reply.
type Sender interface {
	Send(ctx context.Context, channel string, request []byte) ([]byte, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, request []byte) ([]byte, error)

func (f CallerFunc) Call(ctx context.Context, request []byte) ([]byte, error) {
	return f(ctx, request)
}

// Response is the outcome of SingleRPC. Exactly one of Result and Error is
// set, except for a successful call without a result.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client encodes calls as JSON-RPC 2.0 requests with monotonically
// increasing numeric ids.
type Client struct {
	caller     Caller
	sender     Sender
	instanceID string
	lastID     atomic.Uint64
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithCaller sets the synchronous transport.
func WithCaller(c Caller) Option {
	return func(cl *Client) {
		cl.caller = c
	}
}

// WithSender sets the channel transport used when no Caller is configured.
func WithSender(s Sender) Option {
	return func(cl *Client) {
		cl.sender = s
	}
}

// WithInstanceID overrides the generated session instance id.
func WithInstanceID(id string) Option {
	return func(cl *Client) {
		cl.instanceID = id
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client. Without transport options every call fails
// with domain.TransportUnsupportedError.
func NewClient(opts ...Option) *Client {
	c := &Client{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.instanceID == "" {
		c.instanceID = uuid.NewString()
	}
	return c
}

// InstanceID returns the id that addresses this session on the send channel.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// Channel returns the send channel name for this session.
func (c *Client) Channel() string {
	return c.instanceID + ":jsonrpc"
}

// NewRequest builds the envelope for method with positional params. Every
// request gets a fresh id.
func (c *Client) NewRequest(method string, params ...any) (*jsonrpc2.Request, error) {
	if params == nil {
		params = []any{}
	}
	req := &jsonrpc2.Request{
		Method: method,
		ID:     jsonrpc2.ID{Num: c.lastID.Add(1)},
	}
	if err := req.SetParams(params); err != nil {
		return nil, fmt.Errorf("failed to encode params of %s: %w", method, err)
	}
	return req, nil
}

// Call sends one request and returns its raw result. Failures are typed:
// *domain.TransportUnsupportedError when no transport exists and
// *domain.RemoteExecutionError when the backend answers with an error.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if c.caller == nil && c.sender == nil {
		return nil, &domain.TransportUnsupportedError{}
	}

	req, err := c.NewRequest(method, params...)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	c.logger.Debug("RPC request", "method", method, "id", req.ID.Num)

	var raw []byte
	if c.caller != nil {
		raw, err = c.caller.Call(ctx, payload)
	} else {
		raw, err = c.sender.Send(ctx, c.Channel(), payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var resp jsonrpc2.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		c.logger.Warn("RPC response id mismatch", "method", method, "want", req.ID.String(), "got", resp.ID.String())
	}
	if resp.Error != nil {
		return nil, &domain.RemoteExecutionError{
			Method:  method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}
	if resp.Result == nil {
		return nil, nil
	}
	return *resp.Result, nil
}

// SingleRPC is Call without a Go error: failures are folded into
// Response.Error so callers can forward them to the user verbatim.
func (c *Client) SingleRPC(ctx context.Context, method string, params ...any) Response {
	result, err := c.Call(ctx, method, params...)
	if err == nil {
		return Response{Result: result}
	}

	c.logger.Debug("RPC failed", "method", method, "err", err)
	var remote *domain.RemoteExecutionError
	if errors.As(err, &remote) {
		return Response{Error: remote.Message}
	}
	return Response{Error: err.Error()}
}
