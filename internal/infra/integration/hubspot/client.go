package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

const (
	DefaultBaseURL  = "https://api.hubapi.com"
	DefaultPageSize = 100

	maxErrorBody = 4 << 10
)

// RequestObserver receives one call per HTTP attempt.
type RequestObserver interface {
	ObserveSourceRequest(objectType string, status int, elapsed time.Duration)
}

// Client fetches single pages from the CRM objects API.
type Client struct {
	apiToken string
	baseURL  string
	http     *http.Client
	retry    RetryPolicy
	observer RequestObserver
	logger   *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

func WithRequestObserver(o RequestObserver) ClientOption {
	return func(c *Client) { c.observer = o }
}

func NewClient(baseURL, apiToken string, timeout time.Duration, logger *zap.Logger, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		apiToken: apiToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		retry:    DefaultRetryPolicy(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage requests one page of objectType starting at cursor after.
// Auth failures are returned at once; transport errors, 429 and 5xx are
// retried per the client's RetryPolicy before giving up.
func (c *Client) FetchPage(ctx context.Context, objectType string, properties []string, limit int, after string) (*Page, error) {
	kind := entityFor(objectType)
	if strings.TrimSpace(c.apiToken) == "" {
		return nil, &entity.SourceAuthError{Entity: kind, Message: "api token not configured"}
	}

	endpoint := c.pageURL(objectType, properties, limit, after)
	attempts := c.retry.attempts()

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		page, status, err := c.do(ctx, objectType, endpoint)
		if err == nil {
			return page, nil
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &entity.SourceAuthError{Entity: kind, StatusCode: status, Message: err.Error()}
		}
		lastErr, lastStatus = err, status
		if !retryable(status, err) {
			return nil, &entity.SourceUnavailable{Entity: kind, Attempts: attempt, StatusCode: status, Cause: err}
		}
		if attempt == attempts {
			break
		}

		delay := c.retry.delay(attempt)
		c.logger.Warn("hubspot: request failed, retrying",
			zap.String("object_type", objectType),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if werr := wait(ctx, delay); werr != nil {
			return nil, &entity.SourceUnavailable{Entity: kind, Attempts: attempt, StatusCode: status, Cause: werr}
		}
	}
	return nil, &entity.SourceUnavailable{Entity: kind, Attempts: attempts, StatusCode: lastStatus, Cause: lastErr}
}

func (c *Client) pageURL(objectType string, properties []string, limit int, after string) string {
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		q.Set("after", after)
	}
	return fmt.Sprintf("%s/crm/v3/objects/%s?%s", c.baseURL, url.PathEscape(objectType), q.Encode())
}

// do performs a single attempt. status is 0 when no response arrived.
func (c *Client) do(ctx context.Context, objectType, endpoint string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "hubspot: build request")
	}
	c.addAuthHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(objectType, 0, start)
		return nil, 0, eris.Wrapf(err, "hubspot: GET %s", objectType)
	}
	defer resp.Body.Close()
	c.observe(objectType, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, eris.Errorf("hubspot: %s returned %d: %s",
			objectType, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		// A body we cannot parse will not parse on retry either; report it as
		// a non-retryable status.
		return nil, resp.StatusCode, eris.Wrapf(err, "hubspot: decode %s page", objectType)
	}
	return &page, resp.StatusCode, nil
}

func (c *Client) observe(objectType string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveSourceRequest(objectType, status, time.Since(start))
	}
}

func (c *Client) addAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Accept", "application/json")
}
