package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/mcp"
	"reddit-alpha-agent/internal/metrics"
)

// Error carries an HTTP status for a tool failure.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func badRequest(format string, args ...any) error {
	return &Error{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers {"detail": "..."}; errors without a status are 500s.
func writeError(w http.ResponseWriter, err error) int {
	status := http.StatusInternalServerError
	var he *Error
	if errors.As(err, &he) {
		status = he.Status
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
	return status
}

// Endpoint adapts a tool to a JSON POST handler.
func Endpoint[Req, Resp any](name string, fn func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger.Info(ctx, "Tool called", "tool", name)

		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status := writeError(w, &Error{Status: http.StatusUnprocessableEntity, Detail: "invalid request body: " + err.Error()})
			metrics.ToolRequests.WithLabelValues(name, strconv.Itoa(status)).Inc()
			return
		}
		resp, err := fn(ctx, req)
		if err != nil {
			logger.ErrorWithErr(ctx, "Tool failed", err, "tool", name)
			status := writeError(w, err)
			metrics.ToolRequests.WithLabelValues(name, strconv.Itoa(status)).Inc()
			return
		}
		writeJSON(w, http.StatusOK, resp)
		metrics.ToolRequests.WithLabelValues(name, "200").Inc()
	}
}

// MCPTool adapts a tool to the JSON-RPC dispatcher.
func MCPTool[Req, Resp any](info mcp.ToolInfo, fn func(context.Context, Req) (Resp, error)) mcp.Tool {
	return mcp.Tool{
		Info: info,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var req Req
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			resp, err := fn(ctx, req)
			status := "200"
			if err != nil {
				status = "error"
			}
			metrics.ToolRequests.WithLabelValues(info.Name, status).Inc()
			return resp, err
		},
	}
}

// Definitions lists the four tools with their argument schemas.
func (t *Tools) Definitions() []mcp.Tool {
	return []mcp.Tool{
		MCPTool(mcp.ToolInfo{
			Name:        "scrape_reddit",
			Description: "Scrape a subreddit for ticker mentions",
			InputSchema: map[string]any{"start_date": "YYYYMMDD", "end_date": "YYYYMMDD", "subreddit": "string (optional)"},
		}, t.ScrapeReddit),
		MCPTool(mcp.ToolInfo{
			Name:        "analyze_sentiment",
			Description: "Score mentions and aggregate daily sentiment per gvkeyiid",
			InputSchema: map[string]any{"mentions_data": "list of mentions"},
		}, t.AnalyzeSentiment),
		MCPTool(mcp.ToolInfo{
			Name:        "generate_alpha",
			Description: "Generate validated position frame from daily sentiment",
			InputSchema: map[string]any{"sentiment_data": "list of sentiment records", "start_date": "YYYYMMDD", "end_date": "YYYYMMDD", "leverage": "number (optional)"},
		}, t.GenerateAlpha),
		MCPTool(mcp.ToolInfo{
			Name:        "submit_to_finter",
			Description: "Submit the model to FINTER",
			InputSchema: map[string]any{"position_json": "JSON string of position frame", "model_name": "string", "universe": "string (optional)"},
		}, t.SubmitToFinter),
	}
}
