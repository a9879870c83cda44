package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries bounds retries after rate limit responses.
	MaxRetries = 5

	// MaxBackoff caps the exponential backoff used when GitHub returns a
	// 403 without a reset time.
	MaxBackoff = 8 * time.Second
)

// Client wraps the go-github client with rate limiting and retries.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
	maxRetries  int
	sleep       func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		if u, err := url.Parse(base); err == nil {
			c.gh.BaseURL = u
		}
	}
}

// WithRequestRate sets the proactive request rate. Zero disables throttling.
func WithRequestRate(perSecond float64) ClientOption {
	return func(c *Client) { c.rateLimiter = NewRateLimiter(perSecond) }
}

// NewClient creates a GitHub API client. An empty token makes
// unauthenticated requests.
func NewClient(ctx context.Context, token string, opts ...ClientOption) *Client {
	httpClient := &http.Client{}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	httpClient.Timeout = DefaultTimeout

	c := &Client{
		gh:          gh.NewClient(httpClient),
		rateLimiter: NewRateLimiter(ProactiveRate),
		maxRetries:  MaxRetries,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRepository fetches a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	var repository *gh.Repository
	err := c.do(ctx, "get repo", func() (*gh.Response, error) {
		r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
		repository = r
		return resp, err
	})
	return repository, err
}

// GetTree fetches the entire tree for a ref recursively.
func (c *Client) GetTree(ctx context.Context, owner, repo, sha string) (*gh.Tree, error) {
	var tree *gh.Tree
	err := c.do(ctx, "get tree", func() (*gh.Response, error) {
		t, resp, err := c.gh.Git.GetTree(ctx, owner, repo, sha, true)
		tree = t
		return resp, err
	})
	return tree, err
}

// GetBlob fetches a blob (file content) by its SHA.
func (c *Client) GetBlob(ctx context.Context, owner, repo, sha string) (*gh.Blob, error) {
	var blob *gh.Blob
	err := c.do(ctx, "get blob", func() (*gh.Response, error) {
		b, resp, err := c.gh.Git.GetBlob(ctx, owner, repo, sha)
		blob = b
		return resp, err
	})
	return blob, err
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// do runs call, sleeping and retrying while GitHub reports rate limiting.
func (c *Client) do(ctx context.Context, op string, call func() (*gh.Response, error)) error {
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := call()
		c.updateRateLimitFromResponse(resp)
		if err == nil {
			return nil
		}

		wait, retry := retryDelay(err, attempt)
		if !retry || attempt >= c.maxRetries {
			return c.wrapError(err, op)
		}
		log.Warn("%s rate limited, sleeping %s (attempt %d)", op, wait, attempt+1)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// retryDelay decides whether err is a rate limit response and how long to
// wait. A reset time wins; otherwise exponential backoff capped at MaxBackoff.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		if reset := rateErr.Rate.Reset.Time; !reset.IsZero() {
			return max(time.Until(reset), time.Second), true
		}
		return backoff(attempt), true
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return backoff(attempt), true
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return backoff(attempt), true
		}
	}
	return 0, false
}

func backoff(attempt int) time.Duration {
	if attempt >= 4 {
		return MaxBackoff
	}
	return min(time.Second<<attempt, MaxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to RateLimitError and APIError.
func (c *Client) wrapError(err error, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		quota := c.rateLimiter.Quota()
		quota.ResetAt = rateLimitErr.Rate.Reset.Time
		return &RateLimitError{Op: operation, Quota: quota}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			Op:         operation,
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}
