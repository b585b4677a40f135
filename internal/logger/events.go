package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func addEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if !tracingEnabled {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// Gate records the outcome of the submission gate. Always logged at INFO.
func Gate(ctx context.Context, model string, submit bool, sharpe, maxDrawdown float64, fields ...any) {
	addEvent(ctx, "gate_decision",
		attribute.String("model", model),
		attribute.Bool("submit", submit),
		attribute.Float64("sharpe", sharpe),
		attribute.Float64("max_drawdown", maxDrawdown),
	)
	all := append([]any{
		"type", "GATE",
		"model", model,
		"submit", submit,
		"sharpe", sharpe,
		"max_drawdown", maxDrawdown,
	}, fields...)
	emit(ctx, slog.LevelInfo, "Gate evaluated", 2, all...)
}

// Submission records a model registered with the platform.
func Submission(ctx context.Context, model, modelID, validationURL string, fields ...any) {
	addEvent(ctx, "model_submitted",
		attribute.String("model", model),
		attribute.String("model_id", modelID),
	)
	all := append([]any{
		"type", "SUBMISSION",
		"model", model,
		"model_id", modelID,
		"validation_url", validationURL,
	}, fields...)
	emit(ctx, slog.LevelInfo, "Model submitted", 2, all...)
}

// Run records the terminal outcome of a pipeline run.
func Run(ctx context.Context, runID, outcome string, fields ...any) {
	addEvent(ctx, "pipeline_run",
		attribute.String("run_id", runID),
		attribute.String("outcome", outcome),
	)
	lvl := slog.LevelInfo
	if outcome == "failed" {
		lvl = slog.LevelWarn
	}
	emit(ctx, lvl, "Pipeline run finished", 2, append([]any{"type", "RUN", "run_id", runID, "outcome", outcome}, fields...)...)
}
