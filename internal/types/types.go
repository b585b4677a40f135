package types

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-day format used in every JSON payload.
const DateLayout = "2006-01-02"

// Post is one submission pulled from a subreddit listing.
type Post struct {
	ID          string    `json:"post_id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedUTC  time.Time `json:"created_utc"`
}

// Mention is a cashtag found in a post. One per unique ticker per post.
type Mention struct {
	Ticker      string `json:"ticker"`
	Date        string `json:"date"`
	Score       int    `json:"score"`
	Text        string `json:"text"`
	PostID      string `json:"post_id"`
	NumComments int    `json:"num_comments"`
}

type ScoredMention struct {
	Mention
	Sentiment float64 `json:"sentiment"`
}

type MappedMention struct {
	ScoredMention
	GVKeyIID string `json:"gvkeyiid"`
}

// DailySentiment aggregates all mentions of one security on one day.
type DailySentiment struct {
	GVKeyIID     string  `json:"gvkeyiid"`
	Date         string  `json:"date"`
	Sentiment    float64 `json:"sentiment"`
	MentionCount int     `json:"mention_count"`
	TotalScore   int     `json:"total_score"`
	Ticker       string  `json:"ticker"`
}

// ValidationReport is the outcome of the start-date dependency check.
type ValidationReport struct {
	Passed          bool    `json:"passed"`
	TotalDiff       float64 `json:"total_diff"`
	Threshold       float64 `json:"threshold"`
	OverlapDays     int     `json:"overlap_days"`
	MaxPositionDiff float64 `json:"max_position_diff"`
}

// SimulationRequest is one backtest. Decorations are the enrichment tool
// results keyed by enricher name.
type SimulationRequest struct {
	Position    json.RawMessage            `json:"position"`
	StartDate   int                        `json:"start_date"`
	EndDate     int                        `json:"end_date"`
	InitialCash float64                    `json:"initial_cash"`
	BuyFeeTax   float64                    `json:"buy_fee_tax"`
	SellFeeTax  float64                    `json:"sell_fee_tax"`
	Slippage    float64                    `json:"slippage"`
	Decorations map[string]json.RawMessage `json:"decorations,omitempty"`
}

// SimulationResult carries the two numbers the gate looks at. MaxDrawdown is
// a positive fraction (0.12 means 12%).
type SimulationResult struct {
	Sharpe      float64         `json:"sharpe"`
	MaxDrawdown float64         `json:"max_drawdown"`
	Source      string          `json:"source"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

type SubmissionRequest struct {
	ModelName   string `json:"model_name"`
	Universe    string `json:"universe"`
	DockerImage string `json:"docker_image"`
	Schedule    string `json:"schedule"`
}

type SubmissionResult struct {
	ModelID       string `json:"model_id"`
	ValidationURL string `json:"validation_url"`
}

// Decision is the gate verdict.
type Decision struct {
	Submit      bool     `json:"submit"`
	Profile     string   `json:"profile"`
	MinSharpe   float64  `json:"min_sharpe"`
	MaxDrawdown float64  `json:"max_drawdown"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Notification is sent when a run does not end in a submission.
type Notification struct {
	Title  string            `json:"title"`
	Text   string            `json:"text"`
	Level  string            `json:"level"`
	Fields map[string]string `json:"fields,omitempty"`
	RunID  string            `json:"run_id,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}

// Signal is what a run would trade, handed to enrichers and the simulator.
type Signal struct {
	ModelName   string                     `json:"model_name"`
	StartDate   int                        `json:"start_date"`
	EndDate     int                        `json:"end_date"`
	Tickers     []string                   `json:"tickers"`
	Positions   map[string]float64         `json:"positions"`
	Validation  ValidationReport           `json:"validation"`
	Decorations map[string]json.RawMessage `json:"decorations,omitempty"`
}

// RunReport is the record of one pipeline run.
type RunReport struct {
	ID            string                     `json:"id"`
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Outcome       string                     `json:"outcome"`
	ModelName     string                     `json:"model_name"`
	StartDate     int                        `json:"start_date"`
	EndDate       int                        `json:"end_date"`
	Posts         int                        `json:"posts"`
	Mentions      int                        `json:"mentions"`
	Mapped        int                        `json:"mapped"`
	Securities    int                        `json:"securities"`
	PositionsFile string                     `json:"positions_file,omitempty"`
	Validation    *ValidationReport          `json:"validation,omitempty"`
	Decorations   map[string]json.RawMessage `json:"decorations,omitempty"`
	Enrichment    map[string]string          `json:"enrichment_failures,omitempty"`
	Simulation    *SimulationResult          `json:"simulation,omitempty"`
	Decision      *Decision                  `json:"decision,omitempty"`
	Submission    *SubmissionResult          `json:"submission,omitempty"`
	Error         string                     `json:"error,omitempty"`
}
