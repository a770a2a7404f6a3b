package hub

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// RateLimitSnapshot is the quota state reported by one response.
type RateLimitSnapshot struct {
	Resource  string    `json:"resource"  yaml:"resource"`
	Limit     int       `json:"limit"     yaml:"limit"`
	Remaining int       `json:"remaining" yaml:"remaining"`
	Used      int       `json:"used"      yaml:"used"`
	ResetAt   time.Time `json:"reset_at"  yaml:"reset_at"`
}

// Exhausted reports whether no requests remain before the reset.
func (s RateLimitSnapshot) Exhausted() bool {
	return s.Remaining <= 0
}

// ResetIn returns the time left until the reset, never negative.
func (s RateLimitSnapshot) ResetIn(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}

	return d
}

// supersedes reports whether s should replace older. A later reset wins. Within
// one reset window the higher used count wins, since it only grows until the
// reset; without used counts the newest observation wins.
func (s RateLimitSnapshot) supersedes(older RateLimitSnapshot) bool {
	switch {
	case s.ResetAt.After(older.ResetAt):
		return true
	case s.ResetAt.Before(older.ResetAt):
		return false
	case s.Used > 0 && older.Used > 0:
		return s.Used >= older.Used
	default:
		return true
	}
}

// ParseRateLimitSnapshot reads the quota headers. It returns false unless
// both the remaining count and the reset epoch are present and valid.
func ParseRateLimitSnapshot(header http.Header) (RateLimitSnapshot, bool) {
	remaining, err := strconv.Atoi(strings.TrimSpace(header.Get(constants.HeaderRateLimitRemaining)))
	if err != nil {
		return RateLimitSnapshot{}, false
	}

	reset, err := strconv.ParseInt(strings.TrimSpace(header.Get(constants.HeaderRateLimitReset)), 10, 64)
	if err != nil {
		return RateLimitSnapshot{}, false
	}

	snapshot := RateLimitSnapshot{
		Resource:  strings.TrimSpace(header.Get(constants.HeaderRateLimitResource)),
		Remaining: remaining,
		ResetAt:   time.Unix(reset, 0),
	}

	if limit, err := strconv.Atoi(strings.TrimSpace(header.Get(constants.HeaderRateLimitLimit))); err == nil {
		snapshot.Limit = limit
	}

	if used, err := strconv.Atoi(strings.TrimSpace(header.Get(constants.HeaderRateLimitUsed))); err == nil {
		snapshot.Used = used
	}

	return snapshot, true
}

// ResourceForRequest classifies a request into the rate-limit resource that
// the server will charge it to.
func ResourceForRequest(req *Request) string {
	if req == nil {
		return constants.ResourceCore
	}

	path := req.URL().Path

	switch {
	case strings.HasSuffix(path, "/graphql"):
		return constants.ResourceGraphQL
	case strings.HasPrefix(path, "/search/"), strings.Contains(path, "/api/v3/search/"):
		return constants.ResourceSearch
	default:
		return constants.ResourceCore
	}
}

// RateLimitTracker holds the newest snapshot per resource. It is safe for
// concurrent use; an older snapshot arriving late never overwrites a newer one.
type RateLimitTracker struct {
	mu        sync.RWMutex
	snapshots map[string]RateLimitSnapshot
}

// NewRateLimitTracker creates an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{
		snapshots: make(map[string]RateLimitSnapshot),
	}
}

// Update stores s if it supersedes the current snapshot for its resource and
// reports whether it did.
func (t *RateLimitTracker) Update(s RateLimitSnapshot) bool {
	if s.Resource == "" {
		s.Resource = constants.ResourceCore
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.snapshots[s.Resource]
	if ok && !s.supersedes(current) {
		return false
	}

	t.snapshots[s.Resource] = s

	return true
}

// Observe parses resp's quota headers and records them.
func (t *RateLimitTracker) Observe(resp *Response) (RateLimitSnapshot, bool) {
	snapshot, ok := ParseRateLimitSnapshot(resp.header)
	if !ok {
		return RateLimitSnapshot{}, false
	}

	if snapshot.Resource == "" {
		snapshot.Resource = ResourceForRequest(resp.Request())
	}

	t.Update(snapshot)

	return snapshot, true
}

// Get returns the snapshot for resource.
func (t *RateLimitTracker) Get(resource string) (RateLimitSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.snapshots[resource]

	return s, ok
}

// All returns a copy of every snapshot keyed by resource.
func (t *RateLimitTracker) All() map[string]RateLimitSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]RateLimitSnapshot, len(t.snapshots))
	for k, v := range t.snapshots {
		out[k] = v
	}

	return out
}

// RetryAfter parses a Retry-After header given as delta seconds or an HTTP date.
// Negative values and second counts beyond the range of time.Duration are
// rejected.
func RetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get(constants.HeaderRetryAfter))
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 || seconds > math.MaxInt64/int64(time.Second) {
			return 0, false
		}

		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	d := at.Sub(now)
	if d < 0 {
		d = 0
	}

	return d, true
}
