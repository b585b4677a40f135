package reddit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

// ErrNoCredentials is returned in API mode when the script-app secrets are missing.
var ErrNoCredentials = errors.New("reddit: REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD are required")

const pageSize = 100

// Scraper lists the newest posts of one subreddit.
type Scraper struct {
	cfg     store.RedditConfig
	limiter *rate.Limiter
	timeout time.Duration
}

var _ interfaces.PostSource = (*Scraper)(nil)

func NewScraper(cfg store.RedditConfig) *Scraper {
	perSecond := cfg.RequestsPerMinute / 60
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Scraper{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Connected reports whether the scraper can authenticate.
func (s *Scraper) Connected() bool {
	return s.cfg.Source == "HTML" || s.cfg.HasCredentials()
}

// Window returns the UTC bounds [start 00:00:00, end 23:59:59].
func Window(start, end time.Time) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
	return from, to
}

// ScrapeDateRange returns posts created inside the day window, oldest first.
func (s *Scraper) ScrapeDateRange(ctx context.Context, start, end time.Time) ([]types.Post, error) {
	from, to := Window(start, end)
	if to.Before(from) {
		return nil, fmt.Errorf("reddit: end %s is before start %s", to.Format(types.DateLayout), from.Format(types.DateLayout))
	}

	op := logger.StartOperation(ctx, "reddit.ScrapeDateRange",
		"subreddit", s.cfg.Subreddit,
		"source", s.cfg.Source,
		"start", from.Format(types.DateLayout),
		"end", to.Format(types.DateLayout),
	)
	ctx = op.Context()

	var (
		posts []types.Post
		err   error
	)
	if s.cfg.Source == "HTML" {
		posts, err = s.scrapeHTML(ctx, from)
	} else {
		posts, err = s.scrapeAPI(ctx, from)
	}
	if err != nil {
		op.EndWithError(err)
		return nil, err
	}

	seen := make(map[string]bool, len(posts))
	inWindow := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		if seen[p.ID] || p.CreatedUTC.Before(from) || p.CreatedUTC.After(to) {
			continue
		}
		seen[p.ID] = true
		inWindow = append(inWindow, p)
	}
	sort.SliceStable(inWindow, func(i, j int) bool { return inWindow[i].CreatedUTC.Before(inWindow[j].CreatedUTC) })

	logger.Info(ctx, "Reddit scrape completed", "subreddit", s.cfg.Subreddit, "listed", len(posts), "in_window", len(inWindow))
	op.End("posts", len(inWindow))
	return inWindow, nil
}

func (s *Scraper) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// token performs the OAuth password grant for a script app.
func (s *Scraper) token(ctx context.Context) (string, error) {
	if !s.cfg.HasCredentials() {
		return "", ErrNoCredentials
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	c := s.newCollector(ctx)
	basic := base64.StdEncoding.EncodeToString([]byte(s.cfg.ClientID + ":" + s.cfg.ClientSecret))
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Authorization", "Basic "+basic)
	})

	var (
		tok   tokenResponse
		cbErr error
	)
	c.OnResponse(func(r *colly.Response) {
		cbErr = json.Unmarshal(r.Body, &tok)
	})

	err := c.Post(s.cfg.AuthURL, map[string]string{
		"grant_type": "password",
		"username":   s.cfg.Username,
		"password":   s.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("reddit auth: %w", err)
	}
	c.Wait()
	if cbErr != nil {
		return "", fmt.Errorf("reddit auth: decode token: %w", cbErr)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit auth: no access token (%s)", tok.Error)
	}
	return tok.AccessToken, nil
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// scrapeAPI pages through /r/<sub>/new until the listing limit is reached or
// the page is older than from.
func (s *Scraper) scrapeAPI(ctx context.Context, from time.Time) ([]types.Post, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	c := s.newCollector(ctx)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Authorization", "bearer "+tok)
	})

	var (
		page  listing
		cbErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page = listing{}
		cbErr = json.Unmarshal(r.Body, &page)
	})

	var posts []types.Post
	after := ""
	for len(posts) < s.cfg.ListingLimit {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		q := url.Values{"limit": {strconv.Itoa(pageSize)}, "raw_json": {"1"}}
		if after != "" {
			q.Set("after", after)
		}
		target := fmt.Sprintf("%s/r/%s/new?%s", strings.TrimRight(s.cfg.APIBaseURL, "/"), s.cfg.Subreddit, q.Encode())
		if err := c.Visit(target); err != nil {
			return nil, fmt.Errorf("reddit listing: %w", err)
		}
		c.Wait()
		if cbErr != nil {
			return nil, fmt.Errorf("reddit listing: decode: %w", cbErr)
		}

		oldest := time.Time{}
		for _, child := range page.Data.Children {
			d := child.Data
			created := time.Unix(int64(d.CreatedUTC), 0).UTC()
			posts = append(posts, types.Post{
				ID:          d.ID,
				Title:       d.Title,
				Text:        d.Selftext,
				Score:       d.Score,
				NumComments: d.NumComments,
				CreatedUTC:  created,
			})
			oldest = created
		}

		after = page.Data.After
		if after == "" || len(page.Data.Children) == 0 || oldest.Before(from) {
			break
		}
	}
	if len(posts) > s.cfg.ListingLimit {
		posts = posts[:s.cfg.ListingLimit]
	}
	return posts, nil
}

// scrapeHTML reads the old.reddit listing, following the "next" button.
func (s *Scraper) scrapeHTML(ctx context.Context, from time.Time) ([]types.Post, error) {
	c := s.newCollector(ctx)

	var (
		posts []types.Post
		next  string
	)
	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("div.thing[data-fullname^='t3_']").Each(func(_ int, sel *goquery.Selection) {
			if p, ok := parseThing(sel); ok {
				posts = append(posts, p)
			}
		})
		if href, ok := e.DOM.Find("span.next-button a").Attr("href"); ok {
			next = e.Request.AbsoluteURL(href)
		}
	})

	target := fmt.Sprintf("%s/r/%s/new/", strings.TrimRight(s.cfg.HTMLBaseURL, "/"), s.cfg.Subreddit)
	for target != "" && len(posts) < s.cfg.ListingLimit {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		before := len(posts)
		next = ""
		if err := c.Visit(target); err != nil {
			return nil, fmt.Errorf("reddit html listing: %w", err)
		}
		c.Wait()
		if len(posts) == before || posts[len(posts)-1].CreatedUTC.Before(from) {
			break
		}
		target = next
	}
	if len(posts) > s.cfg.ListingLimit {
		posts = posts[:s.cfg.ListingLimit]
	}
	return posts, nil
}

// parseThing reads one listing row. Promoted rows carry no timestamp and are skipped.
func parseThing(sel *goquery.Selection) (types.Post, bool) {
	fullname, _ := sel.Attr("data-fullname")
	ts, err := strconv.ParseInt(sel.AttrOr("data-timestamp", ""), 10, 64)
	if err != nil || fullname == "" {
		return types.Post{}, false
	}
	score, _ := strconv.Atoi(sel.AttrOr("data-score", "0"))
	comments, _ := strconv.Atoi(sel.AttrOr("data-comments-count", "0"))

	return types.Post{
		ID:          strings.TrimPrefix(fullname, "t3_"),
		Title:       strings.TrimSpace(sel.Find("a.title").First().Text()),
		Text:        strings.TrimSpace(sel.Find("div.usertext-body div.md").First().Text()),
		Score:       score,
		NumComments: comments,
		CreatedUTC:  time.UnixMilli(ts).UTC(),
	}, true
}
