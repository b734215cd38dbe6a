package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// echoCaller records requests and answers with the given result or error.
type echoCaller struct {
	requests []envelope
	result   any
	rpcErr   map[string]any
	err      error
}

func (e *echoCaller) Call(_ context.Context, request []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(request, &env); err != nil {
		return nil, err
	}
	e.requests = append(e.requests, env)
	if e.err != nil {
		return nil, e.err
	}
	resp := map[string]any{"jsonrpc": "2.0", "id": env.ID}
	if e.rpcErr != nil {
		resp["error"] = e.rpcErr
	} else {
		resp["result"] = e.result
	}
	return json.Marshal(resp)
}

type channelSender struct {
	echoCaller
	channels []string
}

func (s *channelSender) Send(ctx context.Context, channel string, request []byte) ([]byte, error) {
	s.channels = append(s.channels, channel)
	return s.Call(ctx, request)
}

func TestClient_Envelope(t *testing.T) {
	caller := &echoCaller{result: "ok"}
	c := rpc.NewClient(rpc.WithCaller(caller))
	ctx := context.Background()

	_, err := c.Call(ctx, "NodeService.changeNodeStates", "p", "w", []string{"n1"}, "reset")
	require.NoError(t, err)
	_, err = c.Call(ctx, "ReexecutionService.getPage")
	require.NoError(t, err)

	require.Len(t, caller.requests, 2)
	first, second := caller.requests[0], caller.requests[1]
	assert.Equal(t, "2.0", first.JSONRPC)
	assert.Equal(t, "NodeService.changeNodeStates", first.Method)
	assert.JSONEq(t, `["p","w",["n1"],"reset"]`, string(first.Params))
	assert.Greater(t, second.ID, first.ID, "ids increase per call")
	assert.JSONEq(t, `[]`, string(second.Params), "params are always an array")
}

func TestClient_TransportSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("Caller Preferred", func(t *testing.T) {
		caller := &echoCaller{result: 1}
		sender := &channelSender{}
		c := rpc.NewClient(rpc.WithCaller(caller), rpc.WithSender(sender))
		_, err := c.Call(ctx, "m")
		require.NoError(t, err)
		assert.Len(t, caller.requests, 1)
		assert.Empty(t, sender.channels)
	})

	t.Run("Sender Addressed By Instance", func(t *testing.T) {
		sender := &channelSender{echoCaller: echoCaller{result: 1}}
		c := rpc.NewClient(rpc.WithSender(sender), rpc.WithInstanceID("abc"))
		raw, err := c.Call(ctx, "m")
		require.NoError(t, err)
		assert.JSONEq(t, `1`, string(raw))
		assert.Equal(t, []string{"abc:jsonrpc"}, sender.channels)
	})

	t.Run("Generated Instance ID", func(t *testing.T) {
		a, b := rpc.NewClient(), rpc.NewClient()
		assert.NotEmpty(t, a.InstanceID())
		assert.NotEqual(t, a.InstanceID(), b.InstanceID())
	})

	t.Run("No Transport", func(t *testing.T) {
		c := rpc.NewClient()
		_, err := c.Call(ctx, "m")
		var unsupported *domain.TransportUnsupportedError
		assert.ErrorAs(t, err, &unsupported)

		resp := c.SingleRPC(ctx, "m")
		assert.Equal(t, "Current browser is not supported.", resp.Error)
		assert.Nil(t, resp.Result)
	})
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Remote Error", func(t *testing.T) {
		caller := &echoCaller{rpcErr: map[string]any{"code": -32603, "message": "node failed"}}
		c := rpc.NewClient(rpc.WithCaller(caller))

		_, err := c.Call(ctx, rpc.MethodGetPage)
		var remote *domain.RemoteExecutionError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, rpc.MethodGetPage, remote.Method)
		assert.Equal(t, int64(-32603), remote.Code)
		assert.Equal(t, "node failed", remote.Message)

		resp := c.SingleRPC(ctx, rpc.MethodGetPage)
		assert.Equal(t, "node failed", resp.Error)
	})

	t.Run("Transport Error", func(t *testing.T) {
		boom := errors.New("connection refused")
		c := rpc.NewClient(rpc.WithCaller(&echoCaller{err: boom}))
		_, err := c.Call(ctx, "m")
		assert.ErrorIs(t, err, boom)

		resp := c.SingleRPC(ctx, "m")
		assert.Contains(t, resp.Error, "connection refused")
	})

	t.Run("Garbage Response", func(t *testing.T) {
		c := rpc.NewClient(rpc.WithCaller(rpc.CallerFunc(func(context.Context, []byte) ([]byte, error) {
			return []byte("not json"), nil
		})))
		_, err := c.Call(ctx, "m")
		assert.Error(t, err)
	})
}
