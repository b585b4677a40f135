package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"reddit-alpha-agent/internal/logger"
)

// Handler runs one tool against its raw arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type Tool struct {
	Info    ToolInfo
	Handler Handler
}

// Dispatcher serves tools/list and tools/call for a fixed tool set.
type Dispatcher struct {
	tools map[string]Tool
}

func NewDispatcher(tools ...Tool) *Dispatcher {
	d := &Dispatcher{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		d.tools[t.Info.Name] = t
	}
	return d
}

// List returns tool descriptions sorted by name.
func (d *Dispatcher) List() []ToolInfo {
	out := make([]ToolInfo, 0, len(d.tools))
	for _, t := range d.tools {
		out = append(out, t.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Handle answers one request. Tool failures are reported in-band as an
// error ToolResult; protocol failures as an RPCError.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: Version, ID: req.ID}
	if req.JSONRPC != Version {
		resp.Error = &RPCError{Code: CodeInvalidRequest, Message: "jsonrpc must be \"2.0\""}
		return resp
	}

	switch req.Method {
	case MethodList:
		resp.Result, _ = json.Marshal(map[string]any{"tools": d.List()})
	case MethodCall:
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: "params must carry a tool name"}
			return resp
		}
		tool, ok := d.tools[p.Name]
		if !ok {
			resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool %q", p.Name)}
			return resp
		}
		if len(p.Arguments) == 0 {
			p.Arguments = json.RawMessage("{}")
		}
		resp.Result = d.call(ctx, tool, p.Arguments)
	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return resp
}

func (d *Dispatcher) call(ctx context.Context, tool Tool, args json.RawMessage) json.RawMessage {
	var tr ToolResult
	out, err := tool.Handler(ctx, args)
	if err != nil {
		logger.ErrorWithErr(ctx, "tool call failed", err, "tool", tool.Info.Name)
		tr = ToolResult{Content: []Content{{Type: "text", Text: err.Error()}}, IsError: true}
	} else if b, mErr := json.Marshal(out); mErr != nil {
		tr = ToolResult{Content: []Content{{Type: "text", Text: mErr.Error()}}, IsError: true}
	} else {
		tr = ToolResult{Content: []Content{{Type: "text", Text: string(b)}}}
	}
	raw, _ := json.Marshal(tr)
	return raw
}

// ServeHTTP accepts one JSON-RPC request per POST.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	var resp Response
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp = Response{JSONRPC: Version, Error: &RPCError{Code: CodeParseError, Message: err.Error()}}
	} else {
		resp = d.Handle(r.Context(), req)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
