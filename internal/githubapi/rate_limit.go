package githubapi

import (
	"net/http"
	"strconv"
	"time"
)

// DecisionReason names why a rate-limit decision was taken.
type DecisionReason string

const (
	// ReasonWithinBudget means enough primary quota remains.
	ReasonWithinBudget DecisionReason = "within_budget"
	// ReasonResetElapsed means the quota window already reset.
	ReasonResetElapsed DecisionReason = "reset_elapsed"
	// ReasonBelowThreshold means remaining quota fell below the configured floor.
	ReasonBelowThreshold DecisionReason = "remaining_below_threshold"
	// ReasonSecondaryLimit means GitHub signalled an abuse or secondary limit.
	ReasonSecondaryLimit DecisionReason = "secondary_limit"
)

// RateLimitHeaders contains parsed GitHub rate-limit response headers.
type RateLimitHeaders struct {
	Remaining        int
	ResetUnix        int64
	Used             int
	RetryAfter       time.Duration
	SecondaryLimited bool
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  DecisionReason
}

// RateLimitPolicy evaluates rate-limit actions from parsed headers.
type RateLimitPolicy struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
	Now                   func() time.Time
}

// ParseRateLimitHeaders parses rate-limit and retry headers.
//
// Responses without an X-RateLimit-Remaining header report Remaining as -1 so
// they are not mistaken for an exhausted quota.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{
		Remaining: -1,
		Used:      parseInt(header.Get("X-RateLimit-Used")),
		ResetUnix: parseInt64(header.Get("X-RateLimit-Reset")),
	}
	if raw := header.Get("X-RateLimit-Remaining"); raw != "" {
		parsed.Remaining = parseInt(raw)
	}
	if seconds := parseInt(header.Get("Retry-After")); seconds > 0 {
		parsed.RetryAfter = time.Duration(seconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests || (statusCode == http.StatusForbidden && parsed.RetryAfter > 0) {
		parsed.SecondaryLimited = true
	}
	return parsed
}

// Evaluate decides whether calls may continue or should pause.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.SecondaryLimited {
		return Decision{
			WaitFor: max(p.SecondaryLimitBackoff, headers.RetryAfter),
			Reason:  ReasonSecondaryLimit,
		}
	}
	if headers.Remaining < 0 || headers.Remaining >= p.MinRemainingThreshold {
		return Decision{Allow: true, Reason: ReasonWithinBudget}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{Allow: true, Reason: ReasonResetElapsed}
	}
	return Decision{
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  ReasonBelowThreshold,
	}
}

func parseInt(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
