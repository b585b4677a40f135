package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/mcp"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// Source is one enrichment tool.
type Source struct {
	Name      string
	Tool      string
	Required  bool
	Timeout   time.Duration
	Arguments map[string]any
	Caller    interfaces.ToolCaller
}

// Decorations holds every enricher's answer keyed by enricher name.
type Decorations struct {
	Results  map[string]json.RawMessage `json:"results"`
	Failures map[string]string          `json:"failures,omitempty"`
}

type Enricher struct {
	sources []Source
	limit   int
}

func New(sources []Source, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{sources: sources, limit: concurrency}
}

// FromConfig builds one JSON-RPC client per configured enricher.
func FromConfig(cfgs []store.EnricherConfig, concurrency int) *Enricher {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		sources = append(sources, Source{
			Name:      c.Name,
			Tool:      c.Tool,
			Required:  c.Required,
			Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
			Arguments: c.Arguments,
			Caller:    mcp.NewClient(c.URL, c.Token),
		})
	}
	return New(sources, concurrency)
}

func (e *Enricher) Len() int { return len(e.sources) }

// Decorate calls every source concurrently. An optional source that fails is
// listed in Failures; a required one fails the whole call.
func (e *Enricher) Decorate(ctx context.Context, sig types.Signal) (Decorations, error) {
	dec := Decorations{
		Results:  make(map[string]json.RawMessage, len(e.sources)),
		Failures: make(map[string]string),
	}
	if len(e.sources) == 0 {
		return dec, nil
	}

	op := logger.StartOperation(ctx, "enrich.Decorate", "sources", len(e.sources))
	g, gctx := errgroup.WithContext(op.Context())
	g.SetLimit(e.limit)

	var mu sync.Mutex
	base := signalArgs(sig)
	for _, src := range e.sources {
		g.Go(func() error {
			args := maps.Clone(base)
			maps.Copy(args, src.Arguments)

			callCtx := gctx
			if src.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, src.Timeout)
				defer cancel()
			}

			out, err := src.Caller.CallTool(callCtx, src.Tool, args)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if src.Required {
					return fmt.Errorf("required enricher %s: %w", src.Name, err)
				}
				logger.Warn(gctx, "optional enricher failed", "enricher", src.Name, "error", err)
				dec.Failures[src.Name] = err.Error()
				return nil
			}
			dec.Results[src.Name] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		op.EndWithError(err)
		return dec, err
	}
	op.End("succeeded", len(dec.Results), "failed", len(dec.Failures))
	return dec, nil
}

func signalArgs(sig types.Signal) map[string]any {
	return map[string]any{
		"model_name": sig.ModelName,
		"start_date": sig.StartDate,
		"end_date":   sig.EndDate,
		"tickers":    sig.Tickers,
		"positions":  sig.Positions,
	}
}
