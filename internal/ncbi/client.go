// Package ncbi implements a client for the public qblast HTTP interface:
// submit a search, poll its request id until ready, fetch the XML results.
package ncbi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// defaultPollInterval keeps status checks within the usage guidelines
	// of the shared public endpoint.
	defaultPollInterval = 30 * time.Second

	// requestInterval spaces every HTTP call to the endpoint.
	requestInterval = 10 * time.Second
)

var (
	ridPattern    = regexp.MustCompile(`RID = (\S+)`)
	rtoePattern   = regexp.MustCompile(`RTOE = (\d+)`)
	statusPattern = regexp.MustCompile(`Status=(\S+)`)
)

// Client talks to a qblast-compatible public search service. Search blocks
// until the remote search finishes, which is why the coordinator keeps it
// on the single-concurrency direct lane.
type Client struct {
	baseURL string
	logger  *zap.Logger

	// HTTPClient's timeout caps each request, not the whole search.
	HTTPClient *http.Client
	// PollInterval is the delay between status checks.
	PollInterval time.Duration
	// Limiter spaces requests to the shared endpoint.
	Limiter *rate.Limiter
}

// NewClient creates a client for the given qblast endpoint URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		logger:       logger,
		HTTPClient:   &http.Client{Timeout: 5 * time.Minute},
		PollInterval: defaultPollInterval,
		Limiter:      rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// Search submits a query and blocks until results are ready, returning the
// BLAST XML result stream. The caller owns the returned reader.
func (c *Client) Search(ctx context.Context, program, database, query string) (io.ReadCloser, error) {
	rid, rtoe, err := c.submit(ctx, program, database, query)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Public search submitted",
		zap.String("rid", rid),
		zap.Int("rtoe_seconds", rtoe),
	)

	// The server's own estimate of time to completion; no point polling
	// before it elapses.
	if rtoe > 0 {
		sleepWithContext(ctx, time.Duration(rtoe)*time.Second)
	}

	if err := c.waitReady(ctx, rid); err != nil {
		return nil, err
	}
	return c.fetch(ctx, rid)
}

func (c *Client) submit(ctx context.Context, program, database, query string) (string, int, error) {
	form := url.Values{}
	form.Set("CMD", "Put")
	form.Set("PROGRAM", program)
	form.Set("DATABASE", database)
	form.Set("QUERY", query)

	body, err := c.post(ctx, form)
	if err != nil {
		return "", 0, err
	}

	m := ridPattern.FindStringSubmatch(body)
	if m == nil {
		return "", 0, fmt.Errorf("ncbi: no request id in submit response")
	}
	rid := m[1]

	rtoe := 0
	if m := rtoePattern.FindStringSubmatch(body); m != nil {
		rtoe, _ = strconv.Atoi(m[1])
	}
	return rid, rtoe, nil
}

func (c *Client) waitReady(ctx context.Context, rid string) error {
	form := url.Values{}
	form.Set("CMD", "Get")
	form.Set("FORMAT_OBJECT", "SearchInfo")
	form.Set("RID", rid)

	for {
		sleepWithContext(ctx, c.PollInterval)
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := c.post(ctx, form)
		if err != nil {
			return err
		}
		m := statusPattern.FindStringSubmatch(body)
		if m == nil {
			return fmt.Errorf("ncbi: no status in poll response for %s", rid)
		}

		switch m[1] {
		case "WAITING":
			c.logger.Debug("Search still running", zap.String("rid", rid))
		case "READY":
			return nil
		case "FAILED":
			return fmt.Errorf("ncbi: search %s failed", rid)
		case "UNKNOWN":
			return fmt.Errorf("ncbi: search %s expired", rid)
		default:
			return fmt.Errorf("ncbi: unexpected search status %q", m[1])
		}
	}
}

func (c *Client) fetch(ctx context.Context, rid string) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("CMD", "Get")
	form.Set("FORMAT_TYPE", "XML")
	form.Set("RID", rid)

	resp, err := c.do(ctx, form)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ncbi: fetch results: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, form url.Values) (string, error) {
	resp, err := c.do(ctx, form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ncbi: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ncbi: read response: %w", err)
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, form url.Values) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ncbi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ncbi: %s request: %w", form.Get("CMD"), err)
	}
	return resp, nil
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
