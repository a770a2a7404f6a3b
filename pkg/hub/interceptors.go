package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RequestInterceptor runs before a request is dispatched. It returns the
// request to send, which may be a modified copy of req.
type RequestInterceptor func(ctx context.Context, req *Request) (*Request, error)

// ResponseInterceptor runs after the final response or error of a call.
// resp is nil when err is non-nil.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response, err error) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		requestInterceptors:  make([]RequestInterceptor, 0),
		responseInterceptors: make([]ResponseInterceptor, 0),
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors in order, feeding
// each the request returned by the previous one.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) (*Request, error) {
	c.mu.RLock()
	interceptors := append([]RequestInterceptor(nil), c.requestInterceptors...)
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		next, err := interceptor(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("request interceptor failed: %w", err)
		}

		if next != nil {
			req = next
		}
	}

	return req, nil
}

// ExecuteResponseInterceptors runs all response interceptors.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response, callErr error) error {
	c.mu.RLock()
	interceptors := append([]ResponseInterceptor(nil), c.responseInterceptors...)
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		err := interceptor(ctx, req, resp, callErr)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// Common Interceptors

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		logger.Debug("API Request", map[string]interface{}{
			"method": req.Method(),
			"path":   req.URL().Path,
		})

		return req, nil
	}
}

// LoggingResponseInterceptor logs responses.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response, err error) error {
		fields := map[string]interface{}{
			"method": req.Method(),
			"path":   req.URL().Path,
		}

		if resp != nil {
			fields["status_code"] = resp.StatusCode()
		}

		if err != nil {
			fields["error"] = err.Error()
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return nil
	}
}

// HeaderInterceptor adds headers that the request does not already carry.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		for key, value := range headers {
			if req.Header(key) == "" {
				req = req.WithHeader(key, value)
			}
		}

		return req, nil
	}
}

// Metrics holds per-endpoint call statistics.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects API metrics in memory. Start times are keyed by
// the call id in the context (see ContextWithCallID), so later interceptors
// may replace the request. Without a call id the request pointer is the key.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	started  map[interface{}]time.Time
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
		started: make(map[interface{}]time.Time),
	}
}

// Pending returns the number of calls started but not yet finished.
func (m *MetricsCollector) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.started)
}

func startKey(ctx context.Context, req *Request) interface{} {
	if id, ok := CallIDFromContext(ctx); ok {
		return id
	}

	return req
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a copy of the metrics for an endpoint.
func (m *MetricsCollector) GetMetrics(endpoint string) (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metrics, ok := m.metrics[endpoint]; ok {
		return *metrics, true
	}

	return Metrics{}, false
}

// MetricsRequestInterceptor records request start time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) (*Request, error) {
		collector.mu.Lock()
		collector.started[startKey(ctx, req)] = time.Now()
		collector.mu.Unlock()

		return req, nil
	}
}

// MetricsResponseInterceptor records response metrics.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response, err error) error {
		endpoint := fmt.Sprintf("%s %s", req.Method(), req.URL().Path)

		collector.mu.Lock()

		metrics, ok := collector.metrics[endpoint]
		if !ok {
			metrics = &Metrics{}
			collector.metrics[endpoint] = metrics
		}

		metrics.TotalRequests++
		metrics.LastRequestTime = time.Now()

		key := startKey(ctx, req)
		if start, ok := collector.started[key]; ok {
			delete(collector.started, key)
			metrics.TotalLatency += time.Since(start)
			metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
		}

		if err != nil || (resp != nil && resp.StatusCode() >= http.StatusBadRequest) {
			metrics.TotalErrors++
		}

		snapshot := *metrics
		onChange := collector.onChange

		collector.mu.Unlock()

		if onChange != nil {
			onChange(endpoint, snapshot)
		}

		return nil
	}
}
