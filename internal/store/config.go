package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Reddit    RedditConfig     `yaml:"reddit"`
	Finter    FinterConfig     `yaml:"finter"`
	Sentiment SentimentConfig  `yaml:"sentiment"`
	Alpha     AlphaConfig      `yaml:"alpha"`
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Gate      GateConfig       `yaml:"gate"`
	Backtest  BacktestConfig   `yaml:"backtest"`
	Enrichers []EnricherConfig `yaml:"enrichers"`
	Notify    NotifyConfig     `yaml:"notify"`
	Cache     CacheConfig      `yaml:"cache"`
	RunLog    RunLogConfig     `yaml:"runlog"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

type RedditConfig struct {
	Source            string  `yaml:"source"` // API or HTML
	Subreddit         string  `yaml:"subreddit"`
	UserAgent         string  `yaml:"user_agent"`
	ListingLimit      int     `yaml:"listing_limit"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	AuthURL           string  `yaml:"auth_url"`
	APIBaseURL        string  `yaml:"api_base_url"`
	HTMLBaseURL       string  `yaml:"html_base_url"`

	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
}

// HasCredentials reports whether the OAuth script-app secrets are present.
func (r RedditConfig) HasCredentials() bool {
	return r.ClientID != "" && r.ClientSecret != "" && r.Username != "" && r.Password != ""
}

type FinterConfig struct {
	BaseURL           string  `yaml:"base_url"`
	TokenEnv          string  `yaml:"token_env"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Calendar          string  `yaml:"calendar"` // FINTER or WEEKDAY
	Region            string  `yaml:"region"`
	SecurityType      string  `yaml:"security_type"`
	Vendor            string  `yaml:"vendor"`
	Universe          string  `yaml:"universe"`
	DockerImage       string  `yaml:"docker_image"`
	Schedule          string  `yaml:"schedule"`
	InitialCash       float64 `yaml:"initial_cash"`
	BuyFeeTax         float64 `yaml:"buy_fee_tax"`
	SellFeeTax        float64 `yaml:"sell_fee_tax"`
	Slippage          float64 `yaml:"slippage"`

	Token string `yaml:"-"`
}

type SentimentConfig struct {
	Mapping       string `yaml:"mapping"` // STATIC or FINTER
	MaxSecurities int    `yaml:"max_securities"`
}

type AlphaConfig struct {
	Leverage            float64 `yaml:"leverage"`
	Notional            float64 `yaml:"notional"`
	MaxPosition         float64 `yaml:"max_position"`
	FFillLimit          int     `yaml:"ffill_limit"`
	ValidationThreshold float64 `yaml:"validation_threshold"`
	ShortLookbackDays   int     `yaml:"short_lookback_days"`
	LongLookbackDays    int     `yaml:"long_lookback_days"`
}

type PipelineConfig struct {
	Schedule          string `yaml:"schedule"`
	LookbackDays      int    `yaml:"lookback_days"`
	ModelName         string `yaml:"model_name"`
	DryRun            bool   `yaml:"dry_run"`
	OutputDir         string `yaml:"output_dir"`
	EnrichConcurrency int    `yaml:"enrich_concurrency"`
	TimeoutMinutes    int    `yaml:"timeout_minutes"`
}

type GateConfig struct {
	Profile     string  `yaml:"profile"` // strict, relaxed or custom
	MinSharpe   float64 `yaml:"min_sharpe"`
	MaxDrawdown float64 `yaml:"max_drawdown"`
}

type BacktestConfig struct {
	Provider string `yaml:"provider"` // FINTER or MCP
	URL      string `yaml:"url"`
	Tool     string `yaml:"tool"`
	TokenEnv string `yaml:"token_env"`

	Token string `yaml:"-"`
}

// EnricherConfig describes one external analytics tool called over JSON-RPC.
type EnricherConfig struct {
	Name           string         `yaml:"name"`
	URL            string         `yaml:"url"`
	Tool           string         `yaml:"tool"`
	TokenEnv       string         `yaml:"token_env"`
	Required       bool           `yaml:"required"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Arguments      map[string]any `yaml:"arguments"`

	Token string `yaml:"-"`
}

type NotifyConfig struct {
	WebhookURLEnv  string `yaml:"webhook_url_env"`
	Channel        string `yaml:"channel"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	WebhookURL string `yaml:"-"`
}

type CacheConfig struct {
	Backend     string `yaml:"backend"` // MEMORY or REDIS
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	TTLMinutes  int    `yaml:"ttl_minutes"`

	Password string `yaml:"-"`
}

type RunLogConfig struct {
	Backend  string `yaml:"backend"` // FILE or POSTGRES
	Dir      string `yaml:"dir"`
	DSNEnv   string `yaml:"dsn_env"`
	MinConns int    `yaml:"min_conns"`
	MaxConns int    `yaml:"max_conns"`

	DSN string `yaml:"-"`
}

var gateProfiles = map[string][2]float64{
	"strict":  {1.5, 0.15},
	"relaxed": {0.5, 0.30},
}

// Default returns a configuration with every default applied and no secrets.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 30
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		// generate_alpha runs two validation passes
		c.Server.WriteTimeoutSeconds = 300
	}

	r := &c.Reddit
	if r.Source == "" {
		r.Source = "API"
	}
	r.Source = strings.ToUpper(r.Source)
	if r.Subreddit == "" {
		r.Subreddit = "wallstreetbets"
	}
	if r.UserAgent == "" {
		r.UserAgent = "AlphatonSentimentAgent/1.0"
	}
	if r.ListingLimit == 0 {
		r.ListingLimit = 500
	}
	if r.RequestsPerMinute == 0 {
		r.RequestsPerMinute = 60
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 30
	}
	if r.AuthURL == "" {
		r.AuthURL = "https://www.reddit.com/api/v1/access_token"
	}
	if r.APIBaseURL == "" {
		r.APIBaseURL = "https://oauth.reddit.com"
	}
	if r.HTMLBaseURL == "" {
		r.HTMLBaseURL = "https://old.reddit.com"
	}

	f := &c.Finter
	if f.BaseURL == "" {
		f.BaseURL = "https://api.finter.quantit.io"
	}
	if f.TokenEnv == "" {
		f.TokenEnv = "FINTER_JWT_TOKEN"
	}
	if f.TimeoutSeconds == 0 {
		f.TimeoutSeconds = 30
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = 3
	}
	if f.RequestsPerSecond == 0 {
		f.RequestsPerSecond = 10
	}
	if f.Calendar == "" {
		f.Calendar = "FINTER"
	}
	f.Calendar = strings.ToUpper(f.Calendar)
	if f.Region == "" {
		f.Region = "usa"
	}
	if f.SecurityType == "" {
		f.SecurityType = "stock"
	}
	if f.Vendor == "" {
		f.Vendor = "spglobal"
	}
	if f.Universe == "" {
		f.Universe = "us_stock"
	}
	if f.DockerImage == "" {
		f.DockerImage = "public.ecr.aws/d2s6t0y4/reddit-agent:v1"
	}
	if f.Schedule == "" {
		f.Schedule = "0 16 * * *"
	}
	if f.InitialCash == 0 {
		f.InitialCash = 1e8
	}
	if f.BuyFeeTax == 0 {
		f.BuyFeeTax = 25
	}
	if f.SellFeeTax == 0 {
		f.SellFeeTax = 25
	}
	if f.Slippage == 0 {
		f.Slippage = 10
	}

	if c.Sentiment.Mapping == "" {
		c.Sentiment.Mapping = "STATIC"
	}
	c.Sentiment.Mapping = strings.ToUpper(c.Sentiment.Mapping)
	if c.Sentiment.MaxSecurities == 0 {
		c.Sentiment.MaxSecurities = 500
	}

	a := &c.Alpha
	if a.Leverage == 0 {
		a.Leverage = 1.0
	}
	if a.Notional == 0 {
		a.Notional = 1e8
	}
	if a.MaxPosition == 0 {
		a.MaxPosition = 1e8
	}
	if a.FFillLimit == 0 {
		a.FFillLimit = 5
	}
	if a.ValidationThreshold == 0 {
		a.ValidationThreshold = 1.0
	}
	if a.ShortLookbackDays == 0 {
		a.ShortLookbackDays = 50
	}
	if a.LongLookbackDays == 0 {
		a.LongLookbackDays = 100
	}

	p := &c.Pipeline
	if p.Schedule == "" {
		p.Schedule = "0 16 * * *"
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = 30
	}
	if p.ModelName == "" {
		p.ModelName = "reddit_sentiment_v1"
	}
	if p.OutputDir == "" {
		p.OutputDir = "output"
	}
	if p.EnrichConcurrency == 0 {
		p.EnrichConcurrency = 4
	}
	if p.TimeoutMinutes == 0 {
		p.TimeoutMinutes = 30
	}

	g := &c.Gate
	if g.Profile == "" {
		g.Profile = "strict"
	}
	g.Profile = strings.ToLower(g.Profile)
	if th, ok := gateProfiles[g.Profile]; ok {
		if g.MinSharpe == 0 {
			g.MinSharpe = th[0]
		}
		if g.MaxDrawdown == 0 {
			g.MaxDrawdown = th[1]
		}
	}

	if c.Backtest.Provider == "" {
		c.Backtest.Provider = "FINTER"
	}
	c.Backtest.Provider = strings.ToUpper(c.Backtest.Provider)
	if c.Backtest.Tool == "" {
		c.Backtest.Tool = "backtest"
	}

	for i := range c.Enrichers {
		if c.Enrichers[i].TimeoutSeconds == 0 {
			c.Enrichers[i].TimeoutSeconds = 60
		}
	}

	if c.Notify.WebhookURLEnv == "" {
		c.Notify.WebhookURLEnv = "NOTIFY_WEBHOOK_URL"
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = 10
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "MEMORY"
	}
	c.Cache.Backend = strings.ToUpper(c.Cache.Backend)
	if c.Cache.Addr == "" {
		c.Cache.Addr = "localhost:6379"
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 24 * 60
	}

	if c.RunLog.Backend == "" {
		c.RunLog.Backend = "FILE"
	}
	c.RunLog.Backend = strings.ToUpper(c.RunLog.Backend)
	if c.RunLog.Dir == "" {
		c.RunLog.Dir = "logs/runs"
	}
	if c.RunLog.DSNEnv == "" {
		c.RunLog.DSNEnv = "RUNLOG_DSN"
	}
	if c.RunLog.MinConns == 0 {
		c.RunLog.MinConns = 1
	}
	if c.RunLog.MaxConns == 0 {
		c.RunLog.MaxConns = 4
	}
}

// ApplyEnv copies secrets and scalar overrides from the process environment.
func (c *Config) ApplyEnv() error {
	c.Reddit.ClientID = os.Getenv("REDDIT_CLIENT_ID")
	c.Reddit.ClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	c.Reddit.Username = os.Getenv("REDDIT_USERNAME")
	c.Reddit.Password = os.Getenv("REDDIT_PASSWORD")
	c.Finter.Token = os.Getenv(c.Finter.TokenEnv)
	if c.Backtest.TokenEnv != "" {
		c.Backtest.Token = os.Getenv(c.Backtest.TokenEnv)
	}
	for i := range c.Enrichers {
		if c.Enrichers[i].TokenEnv != "" {
			c.Enrichers[i].Token = os.Getenv(c.Enrichers[i].TokenEnv)
		}
	}
	c.Notify.WebhookURL = os.Getenv(c.Notify.WebhookURLEnv)
	if c.Cache.PasswordEnv != "" {
		c.Cache.Password = os.Getenv(c.Cache.PasswordEnv)
	}
	c.RunLog.DSN = os.Getenv(c.RunLog.DSNEnv)

	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PIPELINE_SCHEDULE"); v != "" {
		c.Pipeline.Schedule = v
	}
	if v := os.Getenv("GATE_MIN_SHARPE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GATE_MIN_SHARPE: %w", err)
		}
		c.Gate.MinSharpe = f
	}
	if v := os.Getenv("GATE_MAX_DRAWDOWN"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GATE_MAX_DRAWDOWN: %w", err)
		}
		c.Gate.MaxDrawdown = f
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Reddit.Source != "API" && c.Reddit.Source != "HTML" {
		return fmt.Errorf("reddit.source must be 'API' or 'HTML', got '%s'", c.Reddit.Source)
	}
	if c.Reddit.ListingLimit < 0 {
		return fmt.Errorf("reddit.listing_limit must be positive, got %d", c.Reddit.ListingLimit)
	}
	if c.Finter.Calendar != "FINTER" && c.Finter.Calendar != "WEEKDAY" {
		return fmt.Errorf("finter.calendar must be 'FINTER' or 'WEEKDAY', got '%s'", c.Finter.Calendar)
	}
	if c.Sentiment.Mapping != "STATIC" && c.Sentiment.Mapping != "FINTER" {
		return fmt.Errorf("sentiment.mapping must be 'STATIC' or 'FINTER', got '%s'", c.Sentiment.Mapping)
	}
	if c.Alpha.Leverage <= 0 {
		return fmt.Errorf("alpha.leverage must be positive, got %.2f", c.Alpha.Leverage)
	}
	if c.Alpha.ShortLookbackDays >= c.Alpha.LongLookbackDays {
		return errors.New("alpha.short_lookback_days must be less than alpha.long_lookback_days")
	}
	if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
		return fmt.Errorf("pipeline.schedule '%s': %w", c.Pipeline.Schedule, err)
	}
	if c.Gate.Profile != "custom" {
		if _, ok := gateProfiles[c.Gate.Profile]; !ok {
			return fmt.Errorf("gate.profile must be 'strict', 'relaxed' or 'custom', got '%s'", c.Gate.Profile)
		}
	}
	if c.Gate.MinSharpe <= 0 {
		return fmt.Errorf("gate.min_sharpe must be positive, got %.2f", c.Gate.MinSharpe)
	}
	if c.Gate.MaxDrawdown <= 0 || c.Gate.MaxDrawdown >= 1 {
		return fmt.Errorf("gate.max_drawdown must be a fraction in (0,1), got %.2f", c.Gate.MaxDrawdown)
	}
	if c.Backtest.Provider != "FINTER" && c.Backtest.Provider != "MCP" {
		return fmt.Errorf("backtest.provider must be 'FINTER' or 'MCP', got '%s'", c.Backtest.Provider)
	}
	if c.Backtest.Provider == "MCP" && c.Backtest.URL == "" {
		return errors.New("backtest.url is required when backtest.provider is 'MCP'")
	}
	seen := make(map[string]bool, len(c.Enrichers))
	for _, e := range c.Enrichers {
		if e.Name == "" || e.URL == "" || e.Tool == "" {
			return fmt.Errorf("enricher %q: name, url and tool are required", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("enricher %q declared twice", e.Name)
		}
		seen[e.Name] = true
	}
	if c.Cache.Backend != "MEMORY" && c.Cache.Backend != "REDIS" {
		return fmt.Errorf("cache.backend must be 'MEMORY' or 'REDIS', got '%s'", c.Cache.Backend)
	}
	if c.RunLog.Backend != "FILE" && c.RunLog.Backend != "POSTGRES" {
		return fmt.Errorf("runlog.backend must be 'FILE' or 'POSTGRES', got '%s'", c.RunLog.Backend)
	}
	return nil
}

// LoadConfig reads path, applies defaults and environment, then validates.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse is LoadConfig for an in-memory document.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
