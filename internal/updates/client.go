// Package updates fetches newly published legal texts from an HTML feed page and
// hands them to the learning pipeline's fold stage.
package updates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/pkg/circuitbreaker"
	"github.com/vilaw/backend/pkg/logger"
	"github.com/vilaw/backend/pkg/retry"
)

const (
	itemSelector    = "article.legal-update"
	dateLayout      = "2006-01-02"
	maxContentRunes = 5000
)

type Config struct {
	FeedURL  string
	Weight   float64
	Timeout  time.Duration
	MaxItems int
	Retry    retry.Config
	Breaker  circuitbreaker.Config
}

type Client struct {
	feedURL    string
	weight     float64
	maxItems   int
	httpClient *http.Client
	retryCfg   retry.Config
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Weight <= 0 {
		cfg.Weight = learning.DefaultUpdateWeight
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	cfg.Retry.RetryIf = retryable
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger.GetLogger()
	}
	if cfg.Breaker.Logger == nil {
		cfg.Breaker.Logger = logger.GetLogger()
	}

	return &Client{
		feedURL:  cfg.FeedURL,
		weight:   cfg.Weight,
		maxItems: cfg.MaxItems,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCfg: cfg.Retry,
		breaker:  circuitbreaker.New("legal-updates", cfg.Breaker),
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("feed returned status %d", e.code)
}

// Client errors will not fix themselves; everything else is worth another attempt.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, circuitbreaker.ErrCircuitOpen)
}

// FetchUpdates implements learning.UpdateSource.
func (c *Client) FetchUpdates(ctx context.Context) ([]learning.Item, error) {
	logger.Info("Fetching legal updates", zap.String("url", c.feedURL))

	items, err := retry.DoWithResult(ctx, c.retryCfg, func(ctx context.Context) ([]learning.Item, error) {
		var items []learning.Item
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			items, err = c.fetch(ctx)
			return err
		})
		return items, err
	})
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", c.feedURL, err)
	}

	logger.Info("Legal updates fetched", zap.Int("items", len(items)))
	return items, nil
}

func (c *Client) fetch(ctx context.Context) ([]learning.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return c.parse(doc), nil
}

// parse reads one item per <article class="legal-update">. Items without a title or
// body are skipped.
func (c *Client) parse(doc *goquery.Document) []learning.Item {
	var items []learning.Item

	doc.Find(itemSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if c.maxItems > 0 && len(items) >= c.maxItems {
			return false
		}

		title := clean(s.Find("h2, h3").First().Text())
		content := clean(s.Find(".content").Text())
		if content == "" {
			content = clean(s.Find("p").Text())
		}
		if title == "" || content == "" {
			logger.Debug("Skipping incomplete update", zap.Int("index", i))
			return true
		}

		typ := learning.TypeNewLaw
		if kind, ok := s.Attr("data-type"); ok && kind == learning.TypeLegalUpdate {
			typ = learning.TypeLegalUpdate
		}

		items = append(items, learning.Item{
			Source:   learning.SourceLegalUpdates,
			Type:     typ,
			Title:    title,
			Content:  truncate(content, maxContentRunes),
			Category: s.AttrOr("data-category", ""),
			Date:     parseDate(s),
			Weight:   c.weight,
		})
		return true
	})

	return items
}

func parseDate(s *goquery.Selection) time.Time {
	raw, ok := s.Find("time").First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t
	}
	return time.Time{}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
