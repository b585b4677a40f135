package handlers

import (
	"context"
	"fmt"
	"time"

	"reddit-alpha-agent/internal/alpha"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/reddit"
	"reddit-alpha-agent/internal/sentiment"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

const previewRows = 5

// ToolDeps wires the four tools to their collaborators.
type ToolDeps struct {
	// Scraper returns a post source for the given subreddit.
	Scraper   func(subreddit string) interfaces.PostSource
	Platform  interfaces.Platform
	Calendar  alpha.Calendar
	Engine    *sentiment.Engine
	Alpha     store.AlphaConfig
	Subreddit string
	ModelName string
	Universe  string
}

// Tools implements scrape_reddit, analyze_sentiment, generate_alpha and
// submit_to_finter. Each is served over plain HTTP and over JSON-RPC.
type Tools struct {
	deps ToolDeps
}

func NewTools(d ToolDeps) *Tools {
	if d.Calendar == nil {
		d.Calendar = alpha.WeekdayCalendar{}
	}
	if d.Engine == nil {
		d.Engine = sentiment.NewEngine(nil)
	}
	return &Tools{deps: d}
}

type ScrapeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Subreddit string `json:"subreddit"`
}

type ScrapeResponse struct {
	Status    string          `json:"status"`
	Records   int             `json:"records"`
	DateRange string          `json:"date_range"`
	Subreddit string          `json:"subreddit"`
	Data      []types.Mention `json:"data"`
}

func (t *Tools) ScrapeReddit(ctx context.Context, req ScrapeRequest) (ScrapeResponse, error) {
	if req.Subreddit == "" {
		req.Subreddit = t.deps.Subreddit
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return ScrapeResponse{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return ScrapeResponse{}, err
	}
	if end.Before(start) {
		return ScrapeResponse{}, badRequest("end_date %s is before start_date %s", req.EndDate, req.StartDate)
	}

	posts, err := t.deps.Scraper(req.Subreddit).ScrapeDateRange(ctx, start, end)
	if err != nil {
		return ScrapeResponse{}, err
	}
	mentions := reddit.ExtractMentions(posts)
	if mentions == nil {
		mentions = []types.Mention{}
	}
	logger.Info(ctx, "Scraped mentions", "subreddit", req.Subreddit, "posts", len(posts), "mentions", len(mentions))

	return ScrapeResponse{
		Status:    "success",
		Records:   len(mentions),
		DateRange: req.StartDate + " to " + req.EndDate,
		Subreddit: req.Subreddit,
		Data:      mentions,
	}, nil
}

type SentimentRequest struct {
	MentionsData []types.Mention `json:"mentions_data"`
}

type SentimentResponse struct {
	Status         string                 `json:"status"`
	Records        int                    `json:"records"`
	GVKeyIIDMapped *int                   `json:"gvkeyiid_mapped,omitempty"`
	Data           []types.DailySentiment `json:"data"`
}

func (t *Tools) AnalyzeSentiment(ctx context.Context, req SentimentRequest) (SentimentResponse, error) {
	if len(req.MentionsData) == 0 {
		return SentimentResponse{Status: "success", Data: []types.DailySentiment{}}, nil
	}
	_, daily := t.deps.Engine.Process(req.MentionsData)
	if daily == nil {
		daily = []types.DailySentiment{}
	}
	ids := make(map[string]bool, len(daily))
	for _, d := range daily {
		ids[d.GVKeyIID] = true
	}
	mapped := len(ids)
	logger.Info(ctx, "Sentiment calculated", "mentions", len(req.MentionsData), "records", len(daily), "securities", mapped)

	return SentimentResponse{Status: "success", Records: len(daily), GVKeyIIDMapped: &mapped, Data: daily}, nil
}

type AlphaRequest struct {
	SentimentData []types.DailySentiment `json:"sentiment_data"`
	StartDate     string                 `json:"start_date"`
	EndDate       string                 `json:"end_date"`
	Leverage      float64                `json:"leverage"`
}

type AlphaResponse struct {
	Status            string                        `json:"status"`
	ValidationPassed  bool                          `json:"validation_passed"`
	ValidationDetails types.ValidationReport        `json:"validation_details"`
	PositionShape     [2]int                        `json:"position_shape"`
	PositionPreview   map[string]map[string]float64 `json:"position_preview"`
	PositionJSON      string                        `json:"position_json"`
}

func (t *Tools) GenerateAlpha(ctx context.Context, req AlphaRequest) (AlphaResponse, error) {
	if len(req.SentimentData) == 0 {
		return AlphaResponse{}, badRequest("No sentiment data provided")
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return AlphaResponse{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return AlphaResponse{}, err
	}
	cfg := t.deps.Alpha
	if req.Leverage < 0 {
		return AlphaResponse{}, badRequest("leverage must be positive, got %g", req.Leverage)
	}
	if req.Leverage > 0 {
		cfg.Leverage = req.Leverage
	}

	a := alpha.New(cfg, t.deps.Calendar, req.SentimentData)
	from, to := alpha.FormatYYYYMMDD(start), alpha.FormatYYYYMMDD(end)
	frame, err := a.Get(ctx, from, to)
	if err != nil {
		return AlphaResponse{}, err
	}
	validation, err := a.Validate(ctx, from, to)
	if err != nil {
		return AlphaResponse{}, err
	}
	b, err := frame.MarshalJSON()
	if err != nil {
		return AlphaResponse{}, err
	}
	logger.Info(ctx, "Alpha generated", "shape", fmt.Sprint(frame.Shape()), "validation_passed", validation.Passed)

	return AlphaResponse{
		Status:            "success",
		ValidationPassed:  validation.Passed,
		ValidationDetails: validation,
		PositionShape:     frame.Shape(),
		PositionPreview:   frame.Preview(previewRows),
		PositionJSON:      string(b),
	}, nil
}

type SubmitRequest struct {
	PositionJSON string `json:"position_json"`
	ModelName    string `json:"model_name"`
	Universe     string `json:"universe"`
}

type SubmitResponse struct {
	Status          string                        `json:"status"`
	ModelID         string                        `json:"model_id"`
	ModelName       string                        `json:"model_name"`
	ValidationURL   string                        `json:"validation_url"`
	PositionPreview map[string]map[string]float64 `json:"position_preview"`
}

func (t *Tools) SubmitToFinter(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	if req.ModelName == "" {
		req.ModelName = t.deps.ModelName
	}
	if req.Universe == "" {
		req.Universe = t.deps.Universe
	}
	if req.PositionJSON == "" {
		return SubmitResponse{}, badRequest("position_json is required")
	}
	frame, err := alpha.ParseFrame(req.PositionJSON)
	if err != nil {
		return SubmitResponse{}, badRequest("position_json: %v", err)
	}

	res, err := t.deps.Platform.Submit(ctx, types.SubmissionRequest{ModelName: req.ModelName, Universe: req.Universe})
	if err != nil {
		return SubmitResponse{}, err
	}
	return SubmitResponse{
		Status:          "submitted",
		ModelID:         res.ModelID,
		ModelName:       req.ModelName,
		ValidationURL:   res.ValidationURL,
		PositionPreview: frame.Preview(previewRows),
	}, nil
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse("20060102", v)
	if err != nil {
		return time.Time{}, badRequest("%s must be YYYYMMDD, got %q", field, v)
	}
	return t, nil
}
