// Package sink accumulates listing and detail records from concurrent
// producers and left-joins them once both producers are done.
package sink

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

var (
	// ErrClosed is returned when adding to a side that was already closed.
	ErrClosed = errors.New("sink closed")
	// ErrDrained is returned by a second Drain.
	ErrDrained = errors.New("sink already drained")
)

// queue is an unbounded, mutex-guarded append-only buffer.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	done   chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{done: make(chan struct{})}
}

func (q *queue[T]) add(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	return nil
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// take returns the buffered items and releases the buffer.
func (q *queue[T]) take() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Sink holds the two result streams of a run. Listings and details are
// independent: neither side waits on the other until Drain.
type Sink struct {
	listings *queue[listing.Listing]
	details  *queue[listing.Detail]

	mu      sync.Mutex
	drained bool
}

// New creates an empty sink.
func New() *Sink {
	return &Sink{
		listings: newQueue[listing.Listing](),
		details:  newQueue[listing.Detail](),
	}
}

// AddListing appends a listing record.
func (s *Sink) AddListing(l listing.Listing) error {
	return s.listings.add(l)
}

// AddDetail appends a detail record.
func (s *Sink) AddDetail(d listing.Detail) error {
	return s.details.add(d)
}

// CloseListings marks the listing side complete. Safe to call more than once.
func (s *Sink) CloseListings() { s.listings.close() }

// CloseDetails marks the detail side complete. Safe to call more than once.
func (s *Sink) CloseDetails() { s.details.close() }

// Len returns the number of buffered listings and details.
func (s *Sink) Len() (listings, details int) {
	return s.listings.len(), s.details.len()
}

// Streams is everything a drained sink held: the two raw streams in
// arrival order and their left join.
type Streams struct {
	Listings []listing.Listing
	Details  []listing.Detail
	Joined   []listing.Joined
}

// Drain waits until both sides are closed, then returns one joined record
// per listing in arrival order. It may be called once.
func (s *Sink) Drain(ctx context.Context) ([]listing.Joined, error) {
	st, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return st.Joined, nil
}

// Collect is Drain that also returns the raw listing and detail streams.
// Drain and Collect share the one-shot budget.
func (s *Sink) Collect(ctx context.Context) (Streams, error) {
	for _, done := range []<-chan struct{}{s.listings.done, s.details.done} {
		select {
		case <-done:
		case <-ctx.Done():
			return Streams{}, ctx.Err()
		}
	}

	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return Streams{}, ErrDrained
	}
	s.drained = true
	s.mu.Unlock()

	st := Streams{Listings: s.listings.take(), Details: s.details.take()}
	st.Joined = Merge(st.Listings, st.Details)
	return st, nil
}

// Merge left-joins listings with details on the detail URL. When several
// details share a URL the one with the latest CompletedAt wins; equal
// timestamps go to the one appended last.
func Merge(listings []listing.Listing, details []listing.Detail) []listing.Joined {
	byURL := make(map[string]*listing.Detail, len(details))
	for i := range details {
		d := &details[i]
		key := Key(d.DetailURL)
		if prev, ok := byURL[key]; ok && d.CompletedAt.Before(prev.CompletedAt) {
			continue
		}
		byURL[key] = d
	}

	out := make([]listing.Joined, 0, len(listings))
	for _, l := range listings {
		out = append(out, listing.Join(l, byURL[Key(l.DetailURL)]))
	}
	return out
}

// Key normalizes a detail URL for joining: the fragment and a trailing
// slash are dropped. Unparsable URLs are used verbatim.
func Key(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.Fragment = ""
	if len(parsed.Path) > 1 && parsed.Path[len(parsed.Path)-1] == '/' {
		parsed.Path = parsed.Path[:len(parsed.Path)-1]
	}
	return parsed.String()
}
