package llms

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryStrategy classifies an HTTP status code the way hector's
// getRetryStrategy does, now expressed as parameters to backoff/v5 instead
// of a hand-rolled sleep loop.
type retryStrategy int

const (
	noRetry retryStrategy = iota
	conservativeRetry
	smartRetry
)

func classifyStatus(statusCode int) retryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return smartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return conservativeRetry
	default:
		return noRetry
	}
}

// httpStatusError carries the status code and any Retry-After hint so the
// retry loop can decide delay without re-parsing headers downstream.
type httpStatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *httpStatusError) Error() string { return e.Message }

// withRetry runs op up to maxAttempts times (spec §4.8: max_query_retry_times,
// default 10), backing off exponentially with jitter between 1s and 300s,
// honoring Retry-After when the backend supplies one. Transport errors are
// retried; NoRetry statuses and other errors fail immediately without
// consuming the backoff budget.
func withRetry[T any](ctx context.Context, maxAttempts int, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 300 * time.Second
	b.Multiplier = 2.0

	result, err := backoff.Retry(ctx, func() (T, error) {
		val, err := op()
		if err == nil {
			return val, nil
		}

		statusErr, ok := err.(*httpStatusError)
		if !ok {
			// Transport failures from http.Client.Do (connection refused,
			// client timeout) are transient and retried; anything else is not.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				return val, err
			}
			return val, backoff.Permanent(err)
		}

		strategy := classifyStatus(statusErr.StatusCode)
		if strategy == noRetry {
			return val, backoff.Permanent(err)
		}
		if strategy == smartRetry && statusErr.RetryAfter > 0 {
			return val, backoff.RetryAfterError(statusErr.RetryAfter)
		}
		return val, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
	)
	return result, err
}
