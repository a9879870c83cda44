package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// ErrInvalidRepo indicates a repository name not in owner/name form.
var ErrInvalidRepo = fmt.Errorf("github: repository must be owner/name: %w", domain.ErrInvalidInput)

// RateLimitError is returned when the quota stays exhausted after retries.
type RateLimitError struct {
	Op    string
	Quota Quota
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github %s: quota of %d exhausted until %s",
		e.Op, e.Quota.Limit, e.Quota.ResetAt.Format(time.RFC3339))
}

// APIError is a non-rate-limit error response from the API.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github %s: %d %s (%s)", e.Op, e.StatusCode, e.Message, e.URL)
}

// IsNotFound reports whether err is a 404 from the API. Blobs deleted
// between the tree listing and the fetch surface this way.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsForbidden reports whether err is a 403 that was not rate limiting.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
