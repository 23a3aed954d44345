package githubapi

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRateLimitHeaders(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
		headers    map[string]string
		want       RateLimitHeaders
	}{
		{
			name:       "standard_headers",
			statusCode: http.StatusOK,
			headers: map[string]string{
				"X-RateLimit-Remaining": "4999",
				"X-RateLimit-Reset":     "1739837000",
				"X-RateLimit-Used":      "1",
			},
			want: RateLimitHeaders{Remaining: 4999, Used: 1, ResetUnix: 1739837000},
		},
		{
			name:       "missing_remaining_is_unknown",
			statusCode: http.StatusOK,
			want:       RateLimitHeaders{Remaining: -1},
		},
		{
			name:       "forbidden_with_retry_after_is_secondary",
			statusCode: http.StatusForbidden,
			headers:    map[string]string{"Retry-After": "60"},
			want:       RateLimitHeaders{Remaining: -1, RetryAfter: time.Minute, SecondaryLimited: true},
		},
		{
			name:       "plain_forbidden_is_not_secondary",
			statusCode: http.StatusForbidden,
			headers:    map[string]string{"X-RateLimit-Remaining": "10"},
			want:       RateLimitHeaders{Remaining: 10},
		},
		{
			name:       "garbage_values_on_429",
			statusCode: http.StatusTooManyRequests,
			headers: map[string]string{
				"X-RateLimit-Remaining": "abc",
				"X-RateLimit-Reset":     "xyz",
				"Retry-After":           "nan",
			},
			want: RateLimitHeaders{SecondaryLimited: true},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			header := make(http.Header)
			for key, value := range tc.headers {
				header.Set(key, value)
			}
			if got := ParseRateLimitHeaders(header, tc.statusCode); got != tc.want {
				t.Fatalf("ParseRateLimitHeaders() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRateLimitPolicyEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Unix(1739836800, 0)
	policy := RateLimitPolicy{
		MinRemainingThreshold: 200,
		MinResetBuffer:        10 * time.Second,
		SecondaryLimitBackoff: time.Minute,
		Now:                   func() time.Time { return now },
	}

	testCases := []struct {
		name string
		in   RateLimitHeaders
		want Decision
	}{
		{
			name: "budget_available",
			in:   RateLimitHeaders{Remaining: 500, ResetUnix: now.Add(2 * time.Minute).Unix()},
			want: Decision{Allow: true, Reason: ReasonWithinBudget},
		},
		{
			name: "unknown_remaining",
			in:   RateLimitHeaders{Remaining: -1},
			want: Decision{Allow: true, Reason: ReasonWithinBudget},
		},
		{
			name: "below_threshold_waits_for_reset",
			in:   RateLimitHeaders{Remaining: 100, ResetUnix: now.Add(2 * time.Minute).Unix()},
			want: Decision{WaitFor: 2*time.Minute + 10*time.Second, Reason: ReasonBelowThreshold},
		},
		{
			name: "below_threshold_after_reset",
			in:   RateLimitHeaders{Remaining: 0, ResetUnix: now.Add(-time.Second).Unix()},
			want: Decision{Allow: true, Reason: ReasonResetElapsed},
		},
		{
			name: "secondary_uses_larger_wait",
			in:   RateLimitHeaders{SecondaryLimited: true, RetryAfter: 90 * time.Second},
			want: Decision{WaitFor: 90 * time.Second, Reason: ReasonSecondaryLimit},
		},
		{
			name: "secondary_uses_backoff_floor",
			in:   RateLimitHeaders{SecondaryLimited: true, RetryAfter: 5 * time.Second},
			want: Decision{WaitFor: time.Minute, Reason: ReasonSecondaryLimit},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := policy.Evaluate(tc.in); got != tc.want {
				t.Fatalf("Evaluate() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
