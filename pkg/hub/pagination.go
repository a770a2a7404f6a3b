package hub

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"sync"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// Page is one decoded page of a collection.
type Page[T any] struct {
	Items []T
	// Number is the 1-based position of the page in its sequence.
	Number int
	// StatusCode and Header come from the response that carried the page.
	StatusCode int
	Header     http.Header
	// NextCursor is empty on the terminal page.
	NextCursor string
}

// PageDecoder turns a page response into items. The response is closed by
// the paginator after the decoder returns.
type PageDecoder[T any] func(resp *Response) ([]T, error)

// CursorFunc extracts the next-page cursor from a response. An empty cursor
// ends the sequence.
type CursorFunc func(resp *Response) (string, error)

// CursorRequestFunc builds the request for cursor from the first request.
type CursorRequestFunc func(first *Request, cursor string) (*Request, error)

// PaginateOption configures Paginate.
type PaginateOption func(*paginateOptions)

type paginateOptions struct {
	nextCursor    CursorFunc
	cursorRequest CursorRequestFunc
	pageSize      int
	maxPages      int
}

// WithNextCursor replaces the default Link rel="next" cursor extractor.
func WithNextCursor(fn CursorFunc) PaginateOption {
	return func(o *paginateOptions) {
		o.nextCursor = fn
	}
}

// WithCursorRequest replaces the default, which treats the cursor as a URL
// resolved against the first request.
func WithCursorRequest(fn CursorRequestFunc) PaginateOption {
	return func(o *paginateOptions) {
		o.cursorRequest = fn
	}
}

// WithPageSize sets per_page on the first request, capped at the server
// maximum. A size of zero or less uses the server default.
func WithPageSize(size int) PaginateOption {
	return func(o *paginateOptions) {
		if size <= 0 {
			size = constants.DefaultPageSize
		}

		o.pageSize = min(size, constants.MaxPageSize)
	}
}

// WithMaxPages stops the sequence after n pages. Zero means unlimited.
func WithMaxPages(n int) PaginateOption {
	return func(o *paginateOptions) {
		o.maxPages = n
	}
}

// LinkCursor reads the rel="next" URL from the Link header.
func LinkCursor(resp *Response) (string, error) {
	next, _ := NextLink(resp)

	return next, nil
}

// URLCursorRequest resolves cursor as a URL against first.
func URLCursorRequest(first *Request, cursor string) (*Request, error) {
	return first.WithURL(cursor)
}

// PagedIterable is a lazy collection. Each Iterator starts again from the
// first page.
type PagedIterable[T any] struct {
	dispatcher Dispatcher
	first      *Request
	decode     PageDecoder[T]
	opts       paginateOptions
}

// Paginate prepares a lazy page sequence starting at first. Nothing is
// dispatched until an iterator asks for a page.
func Paginate[T any](dispatcher Dispatcher, first *Request, decode PageDecoder[T], opts ...PaginateOption) *PagedIterable[T] {
	o := paginateOptions{
		nextCursor:    LinkCursor,
		cursorRequest: URLCursorRequest,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.pageSize > 0 && first != nil {
		first = first.WithQueryInt("per_page", o.pageSize)
	}

	return &PagedIterable[T]{
		dispatcher: dispatcher,
		first:      first,
		decode:     decode,
		opts:       o,
	}
}

// Iterator returns a fresh iterator positioned before the first page.
func (p *PagedIterable[T]) Iterator(ctx context.Context) *PageIterator[T] {
	return &PageIterator[T]{
		ctx:      ctx,
		iterable: p,
		next:     p.first,
	}
}

// All fetches every page and returns their items in order.
func (p *PagedIterable[T]) All(ctx context.Context) ([]T, error) {
	var all []T

	err := p.ForEach(ctx, func(item T) error {
		all = append(all, item)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// ForEach calls fn for every item, fetching pages as needed. It stops at the
// first error from fn or from a page fetch.
func (p *PagedIterable[T]) ForEach(ctx context.Context, fn func(T) error) error {
	it := p.Iterator(ctx)

	for it.HasNext() {
		page, err := it.Next()
		if err != nil {
			return err
		}

		for _, item := range page.Items {
			err := fn(item)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Pages returns a range-over-func view of the page sequence. Iteration stops
// after yielding an error.
func (p *PagedIterable[T]) Pages(ctx context.Context) iter.Seq2[*Page[T], error] {
	return func(yield func(*Page[T], error) bool) {
		it := p.Iterator(ctx)

		for it.HasNext() {
			page, err := it.Next()
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

// Items returns a range-over-func view of the items across all pages.
func (p *PagedIterable[T]) Items(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.Pages(ctx) {
			if err != nil {
				var zero T

				yield(zero, err)

				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// PageIterator walks one page sequence. It holds only the next request (or
// none) and the terminal error between calls. Concurrent calls to Next are
// serialized, so pages are always fetched one at a time.
type PageIterator[T any] struct {
	ctx      context.Context
	iterable *PagedIterable[T]

	mu      sync.Mutex
	next    *Request
	fetched int
	err     error
}

// HasNext reports whether another page can be requested. It does not
// dispatch anything.
func (it *PageIterator[T]) HasNext() bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	return it.hasNextLocked()
}

func (it *PageIterator[T]) hasNextLocked() bool {
	if it.err != nil || it.next == nil {
		return false
	}

	maxPages := it.iterable.opts.maxPages

	return maxPages <= 0 || it.fetched < maxPages
}

// Err returns the error that ended the sequence, if any.
func (it *PageIterator[T]) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()

	return it.err
}

// Next fetches and decodes the next page. After a failure every later call
// returns the same error.
func (it *PageIterator[T]) Next() (*Page[T], error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.err != nil {
		return nil, it.err
	}

	if !it.hasNextLocked() {
		return nil, ErrNoMorePages
	}

	page, next, err := it.fetch(it.next)
	if err != nil {
		it.err = fmt.Errorf("%w: page %d: %w", ErrIteratorFailed, it.fetched+1, err)
		it.next = nil

		return nil, it.err
	}

	it.fetched++
	page.Number = it.fetched
	it.next = next

	return page, nil
}

func (it *PageIterator[T]) fetch(req *Request) (*Page[T], *Request, error) {
	p := it.iterable
	if p.dispatcher == nil || req == nil {
		return nil, nil, ErrNilRequest
	}

	if p.decode == nil {
		return nil, nil, ErrNilDecoder
	}

	resp, err := p.dispatcher.Dispatch(it.ctx, req)
	if err != nil {
		return nil, nil, err
	}

	defer func() {
		_ = resp.Close()
	}()

	cursor, err := p.opts.nextCursor(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting next cursor: %w", err)
	}

	items, err := p.decode(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding page: %w", err)
	}

	page := &Page[T]{
		Items:      items,
		StatusCode: resp.StatusCode(),
		Header:     resp.Headers(),
		NextCursor: cursor,
	}

	if cursor == "" {
		return page, nil, nil
	}

	next, err := p.opts.cursorRequest(p.first, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("building next page request: %w", err)
	}

	return page, next, nil
}
