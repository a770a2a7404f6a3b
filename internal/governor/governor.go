// Package governor drives one logical request through repeated attempts,
// waiting out primary rate limits and secondary (abuse) limits according to
// the configured policies.
package governor

import (
	"context"
	"net/http"
	"time"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/internal/observe"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// Authorizer returns the request to put on the wire for one attempt. It is
// called before every attempt so that a refreshed credential is picked up.
type Authorizer func(ctx context.Context, req *hub.Request) (*hub.Request, error)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures the Governor.
type Option func(*Governor)

// WithRateLimitHandler sets the primary rate-limit policy.
func WithRateLimitHandler(handler hub.RateLimitHandler) Option {
	return func(g *Governor) {
		if handler != nil {
			g.rateHandler = handler
		}
	}
}

// WithAbuseLimitHandler sets the secondary-limit policy.
func WithAbuseLimitHandler(handler hub.AbuseLimitHandler) Option {
	return func(g *Governor) {
		if handler != nil {
			g.abuseHandler = handler
		}
	}
}

// WithRateLimitRetryMax bounds the rate-limit wait cycles. Negative values are ignored.
func WithRateLimitRetryMax(n int) Option {
	return func(g *Governor) {
		if n >= 0 {
			g.rateRetryMax = n
		}
	}
}

// WithAbuseRetryMax bounds the secondary-limit wait cycles. Negative values are ignored.
func WithAbuseRetryMax(n int) Option {
	return func(g *Governor) {
		if n >= 0 {
			g.abuseRetryMax = n
		}
	}
}

// WithTracker shares a rate-limit tracker between governors.
func WithTracker(tracker *hub.RateLimitTracker) Option {
	return func(g *Governor) {
		if tracker != nil {
			g.tracker = tracker
		}
	}
}

// WithInvalidator sets the credential cache discarded on RefreshCredential decisions.
func WithInvalidator(invalidator hub.CredentialInvalidator) Option {
	return func(g *Governor) {
		g.invalidator = invalidator
	}
}

// WithTelemetry sets the span and metric recorder.
func WithTelemetry(telemetry *observe.Telemetry) Option {
	return func(g *Governor) {
		if telemetry != nil {
			g.telemetry = telemetry
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger hub.Logger) Option {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSleep replaces the wait implementation.
func WithSleep(sleep SleepFunc) Option {
	return func(g *Governor) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// Governor is safe for concurrent use. All sends share one tracker.
type Governor struct {
	connector     hub.Connector
	tracker       *hub.RateLimitTracker
	rateHandler   hub.RateLimitHandler
	abuseHandler  hub.AbuseLimitHandler
	rateRetryMax  int
	abuseRetryMax int
	invalidator   hub.CredentialInvalidator
	telemetry     *observe.Telemetry
	logger        hub.Logger
	now           func() time.Time
	sleep         SleepFunc
}

// New creates a Governor sending through connector.
func New(connector hub.Connector, opts ...Option) *Governor {
	g := &Governor{
		connector:     connector,
		tracker:       hub.NewRateLimitTracker(),
		rateHandler:   hub.DefaultRateLimitWait(),
		abuseHandler:  hub.DefaultAbuseLimitWait(),
		rateRetryMax:  constants.DefaultRateLimitRetryMax,
		abuseRetryMax: constants.DefaultAbuseRetryMax,
		telemetry:     observe.Noop(),
		logger:        hub.NopLogger{},
		now:           time.Now,
		sleep:         sleepContext,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Tracker returns the shared rate-limit tracker.
func (g *Governor) Tracker() *hub.RateLimitTracker {
	return g.tracker
}

// attemptState is the per-send bookkeeping.
type attemptState struct {
	req        *hub.Request
	resource   string
	attempts   int
	rateWaits  int
	abuseWaits int
	justWaited bool
}

// Send runs req to a success response or an error. Non-success outcomes are
// returned as *hub.HTTPError, *hub.RateLimitError or *hub.AbuseError with the
// response closed; I/O failures and cancellation as *hub.TransportError.
func (g *Governor) Send(ctx context.Context, req *hub.Request, authorize Authorizer) (*hub.Response, error) {
	if req == nil {
		return nil, hub.ErrNilRequest
	}

	ctx, span := g.telemetry.StartSend(ctx, req)

	state := &attemptState{req: req, resource: hub.ResourceForRequest(req)}

	resp, err := g.run(ctx, state, authorize, func(kind string, wait time.Duration, preemptive bool) {
		g.telemetry.RecordWait(ctx, span, kind, wait, preemptive)
	}, func(status int, outcome string) {
		g.telemetry.RecordAttempt(ctx, span, req, state.attempts, status, outcome)
	})

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	} else if code := hub.StatusCode(err); code != 0 {
		status = code
	}

	g.telemetry.EndSend(span, status, err)

	return resp, err
}

type (
	waitRecorder    func(kind string, wait time.Duration, preemptive bool)
	attemptRecorder func(status int, outcome string)
)

//nolint:cyclop,funlen // the attempt loop is a single state machine
func (g *Governor) run(
	ctx context.Context,
	state *attemptState,
	authorize Authorizer,
	recordWait waitRecorder,
	recordAttempt attemptRecorder,
) (*hub.Response, error) {
	for {
		if !state.justWaited {
			waited, err := g.throttle(ctx, state, recordWait)
			if err != nil {
				return nil, err
			}

			if waited {
				continue
			}
		}

		state.justWaited = false
		state.attempts++

		wire := state.req
		if authorize != nil {
			authorized, err := authorize(ctx, state.req)
			if err != nil {
				return nil, err
			}

			wire = authorized
		}

		resp, err := g.connector.Send(ctx, wire)
		if err != nil {
			recordAttempt(0, observe.OutcomeTransport)

			if !hub.IsTransport(err) {
				err = hub.NewTransportError(state.req, err)
			}

			return nil, err
		}

		snapshot, _ := g.tracker.Observe(resp)

		switch {
		case hub.IsSuccessStatus(resp.StatusCode()):
			recordAttempt(resp.StatusCode(), observe.OutcomeSuccess)

			return resp, nil

		case isAbuse(resp):
			recordAttempt(resp.StatusCode(), observe.OutcomeAbuse)

			if err := g.handleAbuse(ctx, state, resp, recordWait); err != nil {
				return nil, err
			}

		case isRateLimited(resp):
			recordAttempt(resp.StatusCode(), observe.OutcomeRateLimited)

			if err := g.handleRateLimit(ctx, state, resp, snapshot, recordWait); err != nil {
				return nil, err
			}

		default:
			recordAttempt(resp.StatusCode(), observe.OutcomeHTTPError)

			failure := hub.NewHTTPError(resp)
			_ = resp.Close()

			return nil, failure
		}
	}
}

// throttle consults the rate-limit policy before dispatch when the tracker
// already reports an exhausted quota. It reports whether it waited.
func (g *Governor) throttle(ctx context.Context, state *attemptState, recordWait waitRecorder) (bool, error) {
	snapshot, ok := g.tracker.Get(state.resource)
	if !ok || !snapshot.Exhausted() {
		return false, nil
	}

	now := g.now()
	if !snapshot.ResetAt.After(now) {
		return false, nil
	}

	decision := g.rateHandler.OnRateLimit(ctx, hub.RateLimitEvent{
		Request:    state.req,
		Snapshot:   snapshot,
		Attempt:    state.rateWaits + 1,
		Preemptive: true,
		Now:        now,
	})

	switch decision.Kind {
	case hub.DecisionProceed:
		return false, nil
	case hub.DecisionFail:
		return false, &hub.RateLimitError{Snapshot: snapshot, Attempts: state.attempts, Reason: decision.Reason}
	}

	if state.rateWaits >= g.rateRetryMax {
		return false, &hub.RateLimitError{
			Snapshot: snapshot,
			Attempts: state.attempts,
			Reason:   "retry budget exhausted",
		}
	}

	state.rateWaits++

	g.logger.Warn("Rate limit exhausted, throttling", map[string]interface{}{
		"resource": snapshot.Resource,
		"reset_at": snapshot.ResetAt,
		"wait":     decision.Wait.String(),
	})

	if err := g.wait(ctx, state, decision, observe.WaitRateLimit, true, recordWait); err != nil {
		return false, err
	}

	return true, nil
}

func (g *Governor) handleRateLimit(
	ctx context.Context,
	state *attemptState,
	resp *hub.Response,
	snapshot hub.RateLimitSnapshot,
	recordWait waitRecorder,
) error {
	if snapshot.Resource == "" {
		snapshot.Resource = state.resource
	}

	decision := g.rateHandler.OnRateLimit(ctx, hub.RateLimitEvent{
		Request:  state.req,
		Response: resp,
		Snapshot: snapshot,
		Attempt:  state.rateWaits + 1,
		Now:      g.now(),
	})

	failure := hub.NewHTTPError(resp)
	_ = resp.Close()

	if decision.Kind == hub.DecisionFail {
		return &hub.RateLimitError{Snapshot: snapshot, Attempts: state.attempts, Reason: decision.Reason, Last: failure}
	}

	if state.rateWaits >= g.rateRetryMax {
		return &hub.RateLimitError{
			Snapshot: snapshot,
			Attempts: state.attempts,
			Reason:   "retry budget exhausted",
			Last:     failure,
		}
	}

	state.rateWaits++

	g.logger.Warn("Rate limit reached", map[string]interface{}{
		"resource": snapshot.Resource,
		"reset_at": snapshot.ResetAt,
		"attempt":  state.attempts,
		"wait":     decision.Wait.String(),
	})

	return g.wait(ctx, state, decision, observe.WaitRateLimit, false, recordWait)
}

func (g *Governor) handleAbuse(ctx context.Context, state *attemptState, resp *hub.Response, recordWait waitRecorder) error {
	now := g.now()
	failure := hub.NewHTTPError(resp)

	decision := g.abuseHandler.OnAbuseLimit(ctx, hub.AbuseLimitEvent{
		Request:  state.req,
		Response: resp,
		Failure:  failure,
		Attempt:  state.abuseWaits + 1,
		Now:      now,
	})

	_ = resp.Close()

	retryAfter, _ := hub.RetryAfter(failure.Header, now)

	if decision.Kind == hub.DecisionFail {
		return &hub.AbuseError{Attempts: state.attempts, Reason: decision.Reason, RetryAfter: retryAfter, Last: failure}
	}

	if state.abuseWaits >= g.abuseRetryMax {
		return &hub.AbuseError{
			Attempts:   state.attempts,
			Reason:     "retry budget exhausted",
			RetryAfter: retryAfter,
			Last:       failure,
		}
	}

	state.abuseWaits++

	if decision.RefreshCredential && g.invalidator != nil {
		g.invalidator.Invalidate()
	}

	g.logger.Warn("Secondary rate limit detected", map[string]interface{}{
		"status":      failure.StatusCode,
		"attempt":     state.attempts,
		"wait":        decision.Wait.String(),
		"refresh":     decision.RefreshCredential,
		"limited_by":  failure.Header.Get(constants.HeaderLimitedBy),
		"retry_after": retryAfter.String(),
	})

	return g.wait(ctx, state, decision, observe.WaitAbuse, false, recordWait)
}

func (g *Governor) wait(
	ctx context.Context,
	state *attemptState,
	decision hub.Decision,
	kind string,
	preemptive bool,
	recordWait waitRecorder,
) error {
	state.justWaited = true

	if decision.Kind != hub.DecisionWait {
		return nil
	}

	recordWait(kind, decision.Wait, preemptive)

	if err := g.sleep(ctx, decision.Wait); err != nil {
		return hub.NewTransportError(state.req, err)
	}

	return nil
}

// isAbuse reports a secondary limit: any 429, or a 403 that carries a
// Retry-After or Gh-Limited-By header.
func isAbuse(resp *hub.Response) bool {
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return resp.Header(constants.HeaderRetryAfter) != "" || resp.Header(constants.HeaderLimitedBy) != ""
	default:
		return false
	}
}

// isRateLimited reports an exhausted primary quota on a 403 or 429.
func isRateLimited(resp *hub.Response) bool {
	code := resp.StatusCode()
	if code != http.StatusForbidden && code != http.StatusTooManyRequests {
		return false
	}

	return resp.Header(constants.HeaderRateLimitRemaining) == "0"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
