// Package httpclient builds the resty clients shared by the geocoding and
// travel-time providers.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// RetryableStatus lists the upstream statuses worth another attempt.
var RetryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options configures a provider client.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int // total attempts, including the first
	WaitTime    time.Duration
	MaxWaitTime time.Duration
	UserAgent   string
}

// DefaultOptions mirrors the geocoder defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:     10 * time.Second,
		MaxAttempts: 4,
		WaitTime:    500 * time.Millisecond,
		MaxWaitTime: 8 * time.Second,
		UserAgent:   "obstetric-locator/1.0",
	}
}

// New returns a resty client with exponential backoff on 429 and 5xx.
func New(opts Options) *resty.Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = def.WaitTime
	}
	if opts.MaxWaitTime < opts.WaitTime {
		opts.MaxWaitTime = opts.WaitTime
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	return resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxAttempts-1).
		SetRetryWaitTime(opts.WaitTime).
		SetRetryMaxWaitTime(opts.MaxWaitTime).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && RetryableStatus[r.StatusCode()]
		})
}

// CheckResponse converts a transport error or a non-2xx status into an
// AppError. Retryable statuses become PROVIDER_TRANSIENT once the retry
// budget is spent.
func CheckResponse(provider string, resp *resty.Response, err error) error {
	if err != nil {
		return apperrors.NewProviderTransientError(provider+" request failed", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	status := resp.StatusCode()
	if RetryableStatus[status] {
		return apperrors.NewProviderTransientError(
			fmt.Sprintf("%s returned %d after %d attempts", provider, status, resp.Request.Attempt), nil)
	}
	return apperrors.NewInternalError(fmt.Sprintf("%s returned %d", provider, status), nil)
}
