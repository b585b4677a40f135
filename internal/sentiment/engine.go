package sentiment

import (
	"sort"

	"reddit-alpha-agent/internal/types"
)

// Engine scores mentions, resolves tickers to gvkeyiid and rolls them up per day.
type Engine struct {
	analyzer *Analyzer
	mapping  map[string]string
}

// NewEngine uses mapping (ticker -> gvkeyiid), or the built-in table when nil.
func NewEngine(mapping map[string]string) *Engine {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	return &Engine{analyzer: NewAnalyzer(), mapping: mapping}
}

func (e *Engine) MappingSize() int {
	return len(e.mapping)
}

func (e *Engine) Analyze(mentions []types.Mention) []types.ScoredMention {
	out := make([]types.ScoredMention, len(mentions))
	for i, m := range mentions {
		out[i] = types.ScoredMention{Mention: m, Sentiment: e.analyzer.Polarity(m.Text)}
	}
	return out
}

// MapToGVKeyIID drops mentions whose ticker is not in the mapping.
func (e *Engine) MapToGVKeyIID(scored []types.ScoredMention) []types.MappedMention {
	out := make([]types.MappedMention, 0, len(scored))
	for _, s := range scored {
		id, ok := e.mapping[s.Ticker]
		if !ok {
			continue
		}
		out = append(out, types.MappedMention{ScoredMention: s, GVKeyIID: id})
	}
	return out
}

// DailySentiment groups by (gvkeyiid, date): mean sentiment, mention count,
// summed post score and the first ticker seen. Sorted by gvkeyiid then date.
func (e *Engine) DailySentiment(mapped []types.MappedMention) []types.DailySentiment {
	type key struct{ id, date string }
	type acc struct {
		sum    float64
		count  int
		score  int
		ticker string
	}

	groups := make(map[key]*acc)
	for _, m := range mapped {
		k := key{m.GVKeyIID, m.Date}
		a, ok := groups[k]
		if !ok {
			a = &acc{ticker: m.Ticker}
			groups[k] = a
		}
		a.sum += m.Sentiment
		a.count++
		a.score += m.Score
	}

	out := make([]types.DailySentiment, 0, len(groups))
	for k, a := range groups {
		out = append(out, types.DailySentiment{
			GVKeyIID:     k.id,
			Date:         k.date,
			Sentiment:    a.sum / float64(a.count),
			MentionCount: a.count,
			TotalScore:   a.score,
			Ticker:       a.ticker,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GVKeyIID != out[j].GVKeyIID {
			return out[i].GVKeyIID < out[j].GVKeyIID
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// Process runs Analyze, MapToGVKeyIID and DailySentiment in order.
func (e *Engine) Process(mentions []types.Mention) ([]types.MappedMention, []types.DailySentiment) {
	mapped := e.MapToGVKeyIID(e.Analyze(mentions))
	return mapped, e.DailySentiment(mapped)
}
