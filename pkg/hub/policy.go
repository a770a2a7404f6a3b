package hub

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// DecisionKind is the outcome chosen by a limit policy.
type DecisionKind int

const (
	// DecisionProceed re-attempts immediately.
	DecisionProceed DecisionKind = iota
	// DecisionWait re-attempts after Decision.Wait.
	DecisionWait
	// DecisionFail surfaces the limit to the caller.
	DecisionFail
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionProceed:
		return "proceed"
	case DecisionWait:
		return "wait"
	case DecisionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decision is recomputed for every limited attempt.
type Decision struct {
	Kind   DecisionKind
	Wait   time.Duration
	Reason string
	// RefreshCredential discards the cached credential before the next attempt.
	RefreshCredential bool
}

// Proceed re-attempts without waiting.
func Proceed() Decision {
	return Decision{Kind: DecisionProceed}
}

// WaitFor re-attempts after d.
func WaitFor(d time.Duration) Decision {
	if d < 0 {
		d = 0
	}

	return Decision{Kind: DecisionWait, Wait: d}
}

// FailWith surfaces the limit with reason.
func FailWith(reason string) Decision {
	return Decision{Kind: DecisionFail, Reason: reason}
}

// WithCredentialRefresh returns d asking for a fresh credential.
func (d Decision) WithCredentialRefresh() Decision {
	d.RefreshCredential = true

	return d
}

// RateLimitEvent describes a primary rate-limit condition.
type RateLimitEvent struct {
	Request *Request
	// Response is nil for preemptive checks made before dispatch.
	Response   *Response
	Snapshot   RateLimitSnapshot
	Attempt    int
	Preemptive bool
	Now        time.Time
}

// AbuseLimitEvent describes a secondary-limit rejection. Failure carries the
// status, headers and body; Response is the raw response for inspection.
type AbuseLimitEvent struct {
	Request  *Request
	Response *Response
	Failure  *HTTPError
	Attempt  int
	Now      time.Time
}

// RateLimitHandler decides what to do about primary rate limits.
type RateLimitHandler interface {
	OnRateLimit(ctx context.Context, event RateLimitEvent) Decision
}

// AbuseLimitHandler decides what to do about secondary limits.
type AbuseLimitHandler interface {
	OnAbuseLimit(ctx context.Context, event AbuseLimitEvent) Decision
}

// RateLimitHandlerFunc adapts a function to RateLimitHandler.
type RateLimitHandlerFunc func(ctx context.Context, event RateLimitEvent) Decision

// OnRateLimit calls f.
func (f RateLimitHandlerFunc) OnRateLimit(ctx context.Context, event RateLimitEvent) Decision {
	return f(ctx, event)
}

// AbuseLimitHandlerFunc adapts a function to AbuseLimitHandler.
type AbuseLimitHandlerFunc func(ctx context.Context, event AbuseLimitEvent) Decision

// OnAbuseLimit calls f.
func (f AbuseLimitHandlerFunc) OnAbuseLimit(ctx context.Context, event AbuseLimitEvent) Decision {
	return f(ctx, event)
}

// RateLimitWait waits until the reported reset, clamped to [Floor, Ceiling],
// plus up to Jitter of random delay.
type RateLimitWait struct {
	Floor   time.Duration
	Ceiling time.Duration
	Jitter  time.Duration
}

// DefaultRateLimitWait returns the default rate-limit policy.
func DefaultRateLimitWait() RateLimitWait {
	return RateLimitWait{
		Floor:   constants.DefaultRateLimitFloor,
		Ceiling: constants.DefaultRateLimitCeiling,
		Jitter:  constants.DefaultRateLimitJitter,
	}
}

// OnRateLimit implements RateLimitHandler.
func (p RateLimitWait) OnRateLimit(_ context.Context, event RateLimitEvent) Decision {
	wait := event.Snapshot.ResetIn(event.Now)
	if wait < p.Floor {
		wait = p.Floor
	}

	if p.Ceiling > 0 && wait > p.Ceiling {
		wait = p.Ceiling
	}

	if p.Jitter > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		wait += time.Duration(rand.Int64N(int64(p.Jitter)))
	}

	return WaitFor(wait)
}

// RateLimitFail surfaces rate limits immediately.
type RateLimitFail struct{}

// OnRateLimit implements RateLimitHandler.
func (RateLimitFail) OnRateLimit(_ context.Context, event RateLimitEvent) Decision {
	if event.Preemptive {
		return FailWith("quota exhausted until reset")
	}

	return FailWith("rate limit reached")
}

// AbuseLimitWait honours Retry-After, then an exhausted quota reset, then
// Default. Ceiling caps the wait when positive.
type AbuseLimitWait struct {
	Default time.Duration
	Ceiling time.Duration
}

// DefaultAbuseLimitWait returns the default secondary-limit policy.
func DefaultAbuseLimitWait() AbuseLimitWait {
	return AbuseLimitWait{Default: constants.DefaultAbuseWait, Ceiling: constants.DefaultAbuseWaitCeiling}
}

// OnAbuseLimit implements AbuseLimitHandler.
func (p AbuseLimitWait) OnAbuseLimit(_ context.Context, event AbuseLimitEvent) Decision {
	var header http.Header
	if event.Failure != nil {
		header = event.Failure.Header
	} else if event.Response != nil {
		header = event.Response.header
	}

	wait, ok := RetryAfter(header, event.Now)
	if !ok {
		if snapshot, parsed := ParseRateLimitSnapshot(header); parsed && snapshot.Exhausted() {
			wait = snapshot.ResetIn(event.Now)
		} else {
			wait = p.Default
		}
	}

	if p.Ceiling > 0 && wait > p.Ceiling {
		wait = p.Ceiling
	}

	return WaitFor(wait)
}

// AbuseLimitFail surfaces secondary limits immediately.
type AbuseLimitFail struct{}

// OnAbuseLimit implements AbuseLimitHandler.
func (AbuseLimitFail) OnAbuseLimit(context.Context, AbuseLimitEvent) Decision {
	return FailWith("secondary rate limit")
}

// AbuseLimitRefresh asks for a fresh credential whenever Next decides to retry.
type AbuseLimitRefresh struct {
	Next AbuseLimitHandler
}

// OnAbuseLimit implements AbuseLimitHandler.
func (p AbuseLimitRefresh) OnAbuseLimit(ctx context.Context, event AbuseLimitEvent) Decision {
	next := p.Next
	if next == nil {
		next = DefaultAbuseLimitWait()
	}

	decision := next.OnAbuseLimit(ctx, event)
	if decision.Kind == DecisionFail {
		return decision
	}

	return decision.WithCredentialRefresh()
}
