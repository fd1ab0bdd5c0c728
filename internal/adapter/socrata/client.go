// Package socrata downloads hazard datasets from a Socrata open data portal.
package socrata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 200 * time.Millisecond
	maxBackoff            = 5 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	AppToken   string
	PageSize   int
	Workers    int
	MaxRecords int
	RateLimit  float64 // requests per second
	Timeout    time.Duration
}

// Client fetches paginated CSV exports of Socrata datasets.
type Client struct {
	baseURL    string
	appToken   string
	pageSize   int
	workers    int
	maxRecords int
	httpClient *http.Client
	limiter    *rate.Limiter
	registry   *domain.Registry
	metrics    *observability.Metrics
	logger     *slog.Logger

	maxAttempts    int
	initialBackoff time.Duration
}

// NewClient creates a Socrata client. Zero-valued options fall back to the
// portal's usual limits.
func NewClient(opts Options, registry *domain.Registry, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 5000
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 1_000_000
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if registry == nil {
		registry = domain.DefaultRegistry()
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		appToken:       opts.AppToken,
		pageSize:       opts.PageSize,
		workers:        opts.Workers,
		maxRecords:     opts.MaxRecords,
		httpClient:     &http.Client{Timeout: opts.Timeout},
		limiter:        rate.NewLimiter(limit, opts.Workers),
		registry:       registry,
		metrics:        metrics,
		logger:         logger,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}
}

// FetchAll fetches every dataset concurrently and returns the collections in
// dataset order.
func (c *Client) FetchAll(ctx context.Context, datasets []Dataset, w Window) ([]domain.Collection, error) {
	out := make([]domain.Collection, len(datasets))
	g, ctx := errgroup.WithContext(ctx)
	for i, ds := range datasets {
		g.Go(func() error {
			coll, err := c.Fetch(ctx, ds, w)
			if err != nil {
				return err
			}
			out[i] = coll
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch downloads one dataset. The first page is fetched alone; further pages
// are fetched in waves of up to Workers concurrent requests until a wave
// returns a short page or MaxRecords is reached. Pages are concatenated in
// offset order.
func (c *Client) Fetch(ctx context.Context, ds Dataset, w Window) (domain.Collection, error) {
	desc, _ := c.registry.Lookup(ds.Category)
	start := time.Now()

	first, err := c.fetchPage(ctx, ds, desc, w, 0)
	if err != nil {
		return domain.Collection{Category: ds.Category}, err
	}
	out := domain.Collection{Category: ds.Category, Points: first}
	if len(first) == 0 {
		c.logger.Info("socrata dataset empty", "dataset", ds.ID, "category", ds.Category)
		return out, nil
	}

	offset := len(first)
	done := len(first) < c.pageSize
	for !done && offset < c.maxRecords {
		pages, err := c.fetchWave(ctx, ds, desc, w, offset)
		if err != nil {
			return domain.Collection{Category: ds.Category}, err
		}
		for _, page := range pages {
			out.Points = append(out.Points, page...)
			offset += c.pageSize
			if len(page) < c.pageSize {
				done = true
			}
		}
	}

	c.logger.Info("socrata dataset fetched",
		"dataset", ds.ID,
		"category", ds.Category,
		"records", len(out.Points),
		"duration", time.Since(start),
	)
	return out, nil
}

func (c *Client) fetchWave(ctx context.Context, ds Dataset, desc domain.CategoryDescriptor, w Window, offset int) ([][]domain.HazardPoint, error) {
	var offsets []int
	for o := offset; o < c.maxRecords && len(offsets) < c.workers; o += c.pageSize {
		offsets = append(offsets, o)
	}

	pages := make([][]domain.HazardPoint, len(offsets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, o := range offsets {
		g.Go(func() error {
			page, err := c.fetchPage(gctx, ds, desc, w, o)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) fetchPage(ctx context.Context, ds Dataset, desc domain.CategoryDescriptor, w Window, offset int) ([]domain.HazardPoint, error) {
	u := fmt.Sprintf("%s/%s.csv?$query=%s", c.baseURL, ds.ID, url.QueryEscape(ds.soql(w, c.pageSize, offset)))

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.get(ctx, u)
		if err == nil {
			c.metrics.SocrataPages.WithLabelValues(ds.ID).Inc()
			coll, err := tabular.ReadCSV(bytes.NewReader(body), desc)
			if err != nil {
				return nil, fmt.Errorf("dataset %s offset %d: %w", ds.ID, offset, err)
			}
			return coll.Points, nil
		}

		c.metrics.SocrataErrors.WithLabelValues(ds.ID).Inc()
		lastErr = err
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("socrata request failed, retrying",
			"dataset", ds.ID,
			"offset", offset,
			"attempt", attempt,
			"error", err,
		)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
	return nil, fmt.Errorf("dataset %s offset %d: %w", ds.ID, offset, lastErr)
}

// statusError is a non-200 response from the portal.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("socrata API error: status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("socrata request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
