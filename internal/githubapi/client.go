package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cam3ron2/org-dashboard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "org-dashboard/internal/githubapi"

// RetryConfig configures GitHub client retry behavior.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for a client call.
type CallMetadata struct {
	Attempts        int
	LastRateHeaders RateLimitHeaders
	LastDecision    Decision
}

// Client wraps GitHub HTTP requests with retry and rate-limit controls.
type Client struct {
	doer       HTTPDoer
	retry      RetryConfig
	ratePolicy RateLimitPolicy
	// Sleep waits between attempts and returns early when ctx is done.
	Sleep func(ctx context.Context, duration time.Duration) error
	// Limiter, when set, paces every attempt including retries.
	Limiter *rate.Limiter
}

// NewClient creates a GitHub API client wrapper.
func NewClient(doer HTTPDoer, retry RetryConfig, ratePolicy RateLimitPolicy) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &Client{
		doer:       doer,
		retry:      retry,
		ratePolicy: ratePolicy,
		Sleep:      sleepContext,
	}
}

// Do executes a request with retry and rate-limit awareness.
//
// A response is returned for the final attempt even when it is rate limited or
// transient, so callers can classify it with its status code.
func (c *Client) Do(req *http.Request) (*http.Response, CallMetadata, error) {
	if req == nil {
		return nil, CallMetadata{}, fmt.Errorf("request is nil")
	}

	ctx := req.Context()
	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer(tracerName).Start(
			ctx,
			"githubapi.client.do",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.URL.EscapedPath()),
				attribute.Int("github.max_attempts", c.retry.MaxAttempts),
			),
		)
		defer span.End()
	}
	fail := func(err error) {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	metadata := CallMetadata{}
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		metadata.Attempts = attempt
		last := attempt == c.retry.MaxAttempts

		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				fail(err)
				return nil, metadata, err
			}
		}

		resp, err := c.doer.Do(req.Clone(ctx))
		if err != nil {
			if last || ctx.Err() != nil {
				fail(err)
				return nil, metadata, err
			}
			if waitErr := c.Sleep(ctx, backoffForAttempt(c.retry, attempt)); waitErr != nil {
				fail(waitErr)
				return nil, metadata, waitErr
			}
			continue
		}

		headers := ParseRateLimitHeaders(resp.Header, resp.StatusCode)
		decision := c.ratePolicy.Evaluate(headers)
		metadata.LastRateHeaders = headers
		metadata.LastDecision = decision

		if span != nil {
			span.AddEvent("attempt_completed", trace.WithAttributes(
				attribute.Int("github.attempt", attempt),
				attribute.Int("http.status_code", resp.StatusCode),
				attribute.Int("github.rate_limit_remaining", headers.Remaining),
				attribute.Bool("github.rate_limit_allow", decision.Allow),
				attribute.String("github.rate_limit_reason", string(decision.Reason)),
			))
		}

		var wait time.Duration
		switch {
		case !decision.Allow:
			wait = decision.WaitFor
		case isTransientStatus(resp.StatusCode):
			wait = backoffForAttempt(c.retry, attempt)
		default:
			if span != nil {
				span.SetStatus(codes.Ok, "request completed")
			}
			return resp, metadata, nil
		}

		if last {
			if span != nil {
				span.SetStatus(codes.Error, fmt.Sprintf("retries exhausted with status %d", resp.StatusCode))
			}
			return resp, metadata, nil
		}
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		if waitErr := c.Sleep(ctx, wait); waitErr != nil {
			fail(waitErr)
			return nil, metadata, waitErr
		}
	}

	err := fmt.Errorf("request attempts exhausted")
	fail(err)
	return nil, metadata, err
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

func backoffForAttempt(retry RetryConfig, attempt int) time.Duration {
	backoff := retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
			return retry.MaxBackoff
		}
	}
	if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
		return retry.MaxBackoff
	}
	return backoff
}
