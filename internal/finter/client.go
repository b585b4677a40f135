package finter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"reddit-alpha-agent/internal/api"
	"reddit-alpha-agent/internal/cache"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// ErrUnauthorized is returned for HTTP 401.
var ErrUnauthorized = errors.New("finter authentication failed: check FINTER_JWT_TOKEN")

const (
	convertBatchSize = 100
	calendarTTL      = 12 * time.Hour
	yyyymmdd         = "20060102"
)

// Client talks to the FINTER REST API.
type Client struct {
	http       *api.Client
	cfg        store.FinterConfig
	cache      cache.Cache
	mappingTTL time.Duration
	batchPause time.Duration
}

var _ interfaces.Platform = (*Client)(nil)

type Option func(*Client)

// WithBatchPause sets the delay between id-conversion batches.
func WithBatchPause(d time.Duration) Option {
	return func(c *Client) { c.batchPause = d }
}

// New builds a client. cache may be nil, in which case an in-memory cache is used.
func New(cfg store.FinterConfig, c cache.Cache, opts ...Option) *Client {
	if c == nil {
		c = cache.NewMemory(10 * time.Minute)
	}
	cl := &Client{
		http: api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithBearerToken(cfg.Token),
			api.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
			api.WithRateLimit(cfg.RequestsPerSecond, 1),
			api.WithRetry(api.RetryConfig{MaxAttempts: cfg.MaxRetries, InitialWait: time.Second, MaxWait: 8 * time.Second}),
			api.WithService("finter"),
			api.WithLogging(true),
		),
		cfg:        cfg,
		cache:      c,
		mappingTTL: 24 * time.Hour,
		batchPause: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(cl)
	}
	return cl
}

// translate maps transport errors to the platform's error contract.
func translate(op string, err error) error {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("finter %s: %w", op, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("finter %s: %w", op, ErrUnauthorized)
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return fmt.Errorf("finter %s rejected: %s: %w", op, apiErr.Message, err)
	default:
		return fmt.Errorf("finter %s: %w", op, err)
	}
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if err := c.http.GetJSON(ctx, path, q, out); err != nil {
		return translate(op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	if err := c.http.PostJSON(ctx, path, body, out); err != nil {
		return translate(op, err)
	}
	return nil
}

func (c *Client) UserInfo(ctx context.Context, item string) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, "user_info", "/user_info", url.Values{"item": {item}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Universe lists the gvkeyiid codes of the configured region/type/vendor.
func (c *Client) Universe(ctx context.Context) ([]string, error) {
	q := url.Values{
		"region": {c.cfg.Region},
		"type":   {c.cfg.SecurityType},
		"vendor": {c.cfg.Vendor},
	}
	var raw json.RawMessage
	if err := c.get(ctx, "universe", "/universe/list", q, &raw); err != nil {
		return nil, err
	}
	ids, err := parseUniverse(raw)
	if err != nil {
		return nil, fmt.Errorf("finter universe: %w", err)
	}
	return ids, nil
}

// parseUniverse accepts {"id_list":[...]}, {"gvkeyiid":[...]} or a list of
// records carrying a gvkeyiid field.
func parseUniverse(raw json.RawMessage) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"id_list", "gvkeyiid"} {
			if v, ok := obj[key]; ok {
				var list []any
				if err := json.Unmarshal(v, &list); err != nil {
					return nil, fmt.Errorf("decode %s: %w", key, err)
				}
				return normalizeIDs(list), nil
			}
		}
		return nil, errors.New("response has neither id_list nor gvkeyiid")
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("unexpected universe payload: %w", err)
	}
	list := make([]any, 0, len(rows))
	for _, r := range rows {
		if v, ok := r["gvkeyiid"]; ok {
			list = append(list, v)
		}
	}
	return normalizeIDs(list), nil
}

// normalizeIDs renders numeric ids as zero-padded 9-character codes.
func normalizeIDs(list []any) []string {
	ids := make([]string, 0, len(list))
	for _, v := range list {
		var s string
		switch x := v.(type) {
		case string:
			s = strings.TrimSpace(x)
		case float64:
			s = strconv.FormatInt(int64(x), 10)
		default:
			continue
		}
		if s == "" {
			continue
		}
		if len(s) < 9 {
			s = strings.Repeat("0", 9-len(s)) + s
		}
		ids = append(ids, s)
	}
	return ids
}

// TradingDays returns exchange sessions between start and end inclusive.
func (c *Client) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	key := fmt.Sprintf("calendar:%s:%s", start.Format(yyyymmdd), end.Format(yyyymmdd))
	var cached []string
	if ok, _ := cache.GetJSON(ctx, c.cache, key, &cached); ok {
		return parseDates(toAny(cached))
	}

	q := url.Values{
		"start_date": {start.Format(yyyymmdd)},
		"end_date":   {end.Format(yyyymmdd)},
	}
	var payload map[string]json.RawMessage
	if err := c.get(ctx, "calendar", "/calendar", q, &payload); err != nil {
		return nil, err
	}
	field, ok := payload["dates"]
	if !ok {
		field, ok = payload["trading_days"]
	}
	if !ok {
		return nil, errors.New("finter calendar: response has neither dates nor trading_days")
	}
	var raw []any
	if err := json.Unmarshal(field, &raw); err != nil {
		return nil, fmt.Errorf("finter calendar: %w", err)
	}
	days, err := parseDates(raw)
	if err != nil {
		return nil, fmt.Errorf("finter calendar: %w", err)
	}

	stored := make([]string, len(days))
	for i, d := range days {
		stored[i] = d.Format(types.DateLayout)
	}
	if err := cache.SetJSON(ctx, c.cache, key, stored, calendarTTL); err != nil {
		logger.Warn(ctx, "Failed to cache trading calendar", "error", err)
	}
	return days, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// parseDates accepts 20240102, "20240102" and "2024-01-02[T...]".
func parseDates(raw []any) ([]time.Time, error) {
	days := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		var s string
		switch x := v.(type) {
		case float64:
			s = strconv.FormatInt(int64(x), 10)
		case string:
			s = x
		default:
			return nil, fmt.Errorf("unsupported date value %v", v)
		}
		d, err := ParseDay(s)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// ParseDay reads a calendar day in either compact or ISO form, as UTC midnight.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' {
		return time.Parse(types.DateLayout, s[:10])
	}
	return time.Parse(yyyymmdd, s)
}

// ConvertIDs maps ids between identifier schemes, in batches of 100.
func (c *Client) ConvertIDs(ctx context.Context, from, to string, ids []string, date time.Time) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for startIdx := 0; startIdx < len(ids); startIdx += convertBatchSize {
		if startIdx > 0 && c.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}
		endIdx := min(startIdx+convertBatchSize, len(ids))
		q := url.Values{
			"from":     {from},
			"to":       {to},
			"source":   {strings.Join(ids[startIdx:endIdx], ",")},
			"universe": {"0"},
			"date":     {date.Format(yyyymmdd)},
		}
		var resp struct {
			CodeMapped map[string]string `json:"code_mapped"`
		}
		if err := c.get(ctx, "id/convert", "/id/convert", q, &resp); err != nil {
			return nil, err
		}
		for k, v := range resp.CodeMapped {
			out[k] = v
		}
	}
	return out, nil
}

// BuildTickerMapping returns ticker -> gvkeyiid for up to maxSecurities
// members of the universe.
func (c *Client) BuildTickerMapping(ctx context.Context, maxSecurities int, date time.Time) (map[string]string, error) {
	key := fmt.Sprintf("ticker-mapping:%d:%s", maxSecurities, date.Format(yyyymmdd))
	var mapping map[string]string
	if ok, _ := cache.GetJSON(ctx, c.cache, key, &mapping); ok {
		return mapping, nil
	}

	ids, err := c.Universe(ctx)
	if err != nil {
		return nil, err
	}
	if maxSecurities > 0 && len(ids) > maxSecurities {
		ids = ids[:maxSecurities]
	}

	shortcodes, err := c.ConvertIDs(ctx, "entity_id", "shortcode", ids, date)
	if err != nil {
		return nil, err
	}
	// a shortcode shared by several listings goes to the lowest gvkeyiid
	gvkeyiids := make([]string, 0, len(shortcodes))
	for id := range shortcodes {
		gvkeyiids = append(gvkeyiids, id)
	}
	sort.Strings(gvkeyiids)

	mapping = make(map[string]string, len(shortcodes))
	for _, gvkeyiid := range gvkeyiids {
		ticker := strings.ToUpper(strings.TrimSpace(shortcodes[gvkeyiid]))
		if ticker == "" {
			continue
		}
		if _, dup := mapping[ticker]; dup {
			continue
		}
		mapping[ticker] = gvkeyiid
	}

	if err := cache.SetJSON(ctx, c.cache, key, mapping, c.mappingTTL); err != nil {
		logger.Warn(ctx, "Failed to cache ticker mapping", "error", err)
	}
	logger.Info(ctx, "Built ticker mapping", "securities", len(ids), "mapped", len(mapping))
	return mapping, nil
}

// Simulate runs a historical simulation of a split-encoded position frame
// and returns the raw statistics document.
func (c *Client) Simulate(ctx context.Context, req types.SimulationRequest) (json.RawMessage, error) {
	if req.InitialCash == 0 {
		req.InitialCash = c.cfg.InitialCash
		req.BuyFeeTax = c.cfg.BuyFeeTax
		req.SellFeeTax = c.cfg.SellFeeTax
		req.Slippage = c.cfg.Slippage
	}
	var out json.RawMessage
	if err := c.post(ctx, "simulation", "/simulation", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit registers a model for scheduled execution.
func (c *Client) Submit(ctx context.Context, req types.SubmissionRequest) (types.SubmissionResult, error) {
	if req.Universe == "" {
		req.Universe = c.cfg.Universe
	}
	if req.DockerImage == "" {
		req.DockerImage = c.cfg.DockerImage
	}
	if req.Schedule == "" {
		req.Schedule = c.cfg.Schedule
	}
	var out types.SubmissionResult
	if err := c.post(ctx, "submission", "/submission", req, &out); err != nil {
		return types.SubmissionResult{}, err
	}
	return out, nil
}
