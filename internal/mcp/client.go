package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"reddit-alpha-agent/internal/api"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
)

// Client calls tools on one JSON-RPC endpoint.
type Client struct {
	http   *api.Client
	nextID atomic.Int64
}

var _ interfaces.ToolCaller = (*Client)(nil)

// NewClient posts envelopes to endpoint with the given bearer token.
func NewClient(endpoint, token string, opts ...api.ClientOption) *Client {
	base := []api.ClientOption{
		api.WithBaseURL(endpoint),
		api.WithBearerToken(token),
		api.WithService("mcp"),
		api.WithLogging(true),
	}
	return &Client{http: api.NewClient(append(base, opts...)...)}
}

// CallTool invokes name with args and returns the tool's JSON output.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	params, err := json.Marshal(CallParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", name, err)
	}
	req := Request{JSONRPC: Version, Method: MethodCall, Params: params, ID: c.nextID.Add(1)}

	var resp Response
	if err := c.http.PostJSON(ctx, "", req, &resp); err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tool %s: %w", name, resp.Error)
	}
	if resp.ID != req.ID {
		logger.Warn(ctx, "JSON-RPC id mismatch", "tool", name, "sent", req.ID, "received", resp.ID)
	}
	return unwrap(name, resp.Result)
}

// unwrap returns the first text content when the result is an MCP content
// list, otherwise the raw result.
func unwrap(name string, result json.RawMessage) (json.RawMessage, error) {
	var tr ToolResult
	if err := json.Unmarshal(result, &tr); err != nil || len(tr.Content) == 0 {
		return result, nil
	}
	text := tr.Content[0].Text
	if tr.IsError {
		return nil, fmt.Errorf("tool %s: %s", name, text)
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	return json.RawMessage(strconv.Quote(text)), nil
}
