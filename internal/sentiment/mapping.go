package sentiment

import (
	"context"
	"fmt"
	"time"

	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/store"
)

// defaultMapping covers fifty large US names, ticker -> gvkeyiid.
var defaultMapping = map[string]string{
	"HON": "001300001", "AMD": "001161001", "AMGN": "001602001", "AAPL": "001690001",
	"BRK.B": "002176002", "JPM": "002968001", "CVX": "002991001", "CAT": "002817001",
	"KO": "003144001", "DIS": "003980001", "XOM": "004503001", "GE": "005047001",
	"HD": "005680001", "JNJ": "006266001", "INTC": "006008001", "IBM": "006066001",
	"LRCX": "006565001", "LLY": "006730001", "BAC": "007647001", "MCD": "007154001",
	"MRK": "007257001", "WFC": "008007001", "NKE": "007906001", "PEP": "008479001",
	"T": "009899001", "ABBV": "016101001", "PG": "008762001", "TXN": "010499001",
	"TMO": "010530001", "UNH": "010903001", "MSFT": "012141001", "ORCL": "012142001",
	"LIN": "025124001", "QCOM": "024800001", "BABA": "020530090", "ANET": "020748001",
	"UBER": "035077001", "WMT": "011259001", "COST": "029028001", "ASML": "061214090",
	"AMZN": "064768001", "NFLX": "147579001", "NVDA": "117768001", "V": "179534001",
	"MA": "160225001", "GOOGL": "160329001", "META": "170617001", "CRM": "157855001",
	"TSLA": "184996001", "AVGO": "180711001",
}

// DefaultMapping returns a copy of the built-in ticker table.
func DefaultMapping() map[string]string {
	out := make(map[string]string, len(defaultMapping))
	for k, v := range defaultMapping {
		out[k] = v
	}
	return out
}

// LoadMapping returns the ticker table selected by cfg. In FINTER mode the
// platform's universe is merged in; built-in entries take precedence.
func LoadMapping(ctx context.Context, cfg store.SentimentConfig, platform interfaces.Platform, asOf time.Time) (map[string]string, error) {
	mapping := DefaultMapping()
	if cfg.Mapping != "FINTER" {
		return mapping, nil
	}
	if platform == nil {
		return nil, fmt.Errorf("sentiment mapping FINTER requires a platform client")
	}
	dynamic, err := platform.BuildTickerMapping(ctx, cfg.MaxSecurities, asOf)
	if err != nil {
		return nil, fmt.Errorf("build ticker mapping: %w", err)
	}
	added := 0
	for ticker, id := range dynamic {
		if _, ok := mapping[ticker]; ok {
			continue
		}
		mapping[ticker] = id
		added++
	}
	logger.Info(ctx, "Ticker mapping loaded", "builtin", len(defaultMapping), "added", added)
	return mapping, nil
}
