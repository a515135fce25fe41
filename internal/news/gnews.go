package news

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

const topHeadlinesPath = "/top-headlines"

// topics maps categories to GNews topics.
var topics = map[Category]string{
	National:   "nation",
	Technology: "technology",
	Lifestyle:  "health",
}

// GNewsOptions configures a GNews client.
type GNewsOptions struct {
	APIKey  string
	BaseURL string
	Lang    string
	Country string
	Max     int
	Timeout time.Duration
	// RatePerSecond caps outgoing requests. Zero or less is unlimited.
	RatePerSecond float64
	// Retries is how often a failed request is retried by the transport.
	Retries  int
	Location *time.Location
	Logger   *zap.Logger
}

// GNews fetches top headlines from the GNews API.
type GNews struct {
	opts      GNewsOptions
	client    *resty.Client
	limiter   *rate.Limiter
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

type gnewsResponse struct {
	Articles []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// NewGNews builds a client. Requests go through a retrying transport and a
// rate limiter.
func NewGNews(opts GNewsOptions) *GNews {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://gnews.io/api/v4"
	}
	if opts.Lang == "" {
		opts.Lang = "zh"
	}
	if opts.Country == "" {
		opts.Country = "cn"
	}
	if opts.Max <= 0 {
		opts.Max = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.Retries, 0)
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "launchdeck-news/1.0").
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(int(opts.RatePerSecond), 1))
	}

	return &GNews{
		opts:      opts,
		client:    client,
		limiter:   limiter,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Fetch returns the top headlines for category. Without an API key there
// is nothing to ask for and the result is empty. Articles without a title
// are dropped.
func (g *GNews) Fetch(ctx context.Context, category Category) ([]Item, error) {
	if strings.TrimSpace(g.opts.APIKey) == "" {
		return nil, nil
	}
	topic, ok := topics[category]
	if !ok {
		return nil, fmt.Errorf("unknown news category %q", category)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for news rate limit: %w", err)
	}

	var body gnewsResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"topic":   topic,
			"lang":    g.opts.Lang,
			"country": g.opts.Country,
			"max":     strconv.Itoa(g.opts.Max),
			"token":   g.opts.APIKey,
		}).
		SetResult(&body).
		Get(topHeadlinesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s news: %w", category, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch %s news: status %d", category, resp.StatusCode())
	}

	items := make([]Item, 0, len(body.Articles))
	for i, article := range body.Articles {
		title := g.cleanTitle(article.Title)
		if title == "" {
			continue
		}
		source := strings.TrimSpace(article.Source.Name)
		if source == "" {
			source = "GNews"
		}
		items = append(items, Item{
			ID:          fmt.Sprintf("%s-%d-%s", category, i, article.PublishedAt),
			Title:       title,
			Source:      source,
			PublishedAt: formatPublished(article.PublishedAt, g.opts.Location),
			Category:    category,
			URL:         article.URL,
		})
	}
	g.logger.Debug("fetched news",
		zap.String("category", string(category)),
		zap.Int("articles", len(body.Articles)),
		zap.Int("kept", len(items)),
	)
	return items, nil
}

// cleanTitle strips markup and decodes entities.
func (g *GNews) cleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(g.sanitizer.Sanitize(title)))
}

// formatPublished renders an RFC 3339 timestamp as local
// "YYYY-MM-DD HH:MM". Anything unparseable is returned as is.
func formatPublished(raw string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
