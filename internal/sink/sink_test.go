package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// --- Drain Tests ---

func TestSink_LeftJoinCardinality(t *testing.T) {
	s := New()
	require.NoError(t, s.AddListing(listing.Listing{PartitionKey: "a", DetailURL: "https://x/1"}))
	require.NoError(t, s.AddListing(listing.Listing{PartitionKey: "a", DetailURL: "https://x/2"}))
	require.NoError(t, s.AddListing(listing.Listing{PartitionKey: "b", DetailURL: "https://x/1"}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/1", Description: "one"}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/orphan", Description: "orphan"}))
	s.CloseListings()
	s.CloseDetails()

	joined, err := s.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, joined, 3)
	assert.Equal(t, "one", joined[0].Description)
	assert.Equal(t, listing.NotAvailable, joined[1].Description)
	assert.Equal(t, listing.NotAvailable, joined[1].WalkInTime)
	assert.Equal(t, "b", joined[2].PartitionKey)
	assert.Equal(t, "one", joined[2].Description, "one detail serves every listing with its URL")
}

func TestSink_CollectKeepsRawStreams(t *testing.T) {
	s := New()
	require.NoError(t, s.AddListing(listing.Listing{DetailURL: "https://x/1"}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/orphan", Description: "orphan"}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/1", Description: "one"}))
	s.CloseListings()
	s.CloseDetails()

	st, err := s.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, st.Listings, 1)
	require.Len(t, st.Details, 2)
	assert.Equal(t, "https://x/orphan", st.Details[0].DetailURL, "details keep arrival order")
	require.Len(t, st.Joined, 1)
	assert.Equal(t, "one", st.Joined[0].Description)

	_, err = s.Drain(context.Background())
	assert.ErrorIs(t, err, ErrDrained)
}

func TestSink_TieBreakLaterCompletionWins(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := New()
	require.NoError(t, s.AddListing(listing.Listing{DetailURL: "https://x/1"}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/1", Description: "newer", CompletedAt: t0.Add(time.Second)}))
	require.NoError(t, s.AddDetail(listing.Detail{DetailURL: "https://x/1", Description: "older", CompletedAt: t0}))
	s.CloseListings()
	s.CloseDetails()

	joined, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "newer", joined[0].Description)
}

func TestMerge_EqualTimestampsLastAppendedWins(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	joined := Merge(
		[]listing.Listing{{DetailURL: "https://x/1"}},
		[]listing.Detail{
			{DetailURL: "https://x/1", Description: "first", CompletedAt: t0},
			{DetailURL: "https://x/1", Description: "second", CompletedAt: t0},
		},
	)
	assert.Equal(t, "second", joined[0].Description)
}

func TestSink_DrainWaitsForBothSides(t *testing.T) {
	s := New()
	s.CloseListings()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSink_AddAfterClose(t *testing.T) {
	s := New()
	s.CloseListings()
	s.CloseListings()
	s.CloseDetails()

	assert.ErrorIs(t, s.AddListing(listing.Listing{}), ErrClosed)
	assert.ErrorIs(t, s.AddDetail(listing.Detail{}), ErrClosed)
}

func TestSink_DrainOnce(t *testing.T) {
	s := New()
	s.CloseListings()
	s.CloseDetails()

	_, err := s.Drain(context.Background())
	require.NoError(t, err)
	_, err = s.Drain(context.Background())
	assert.True(t, errors.Is(err, ErrDrained))
}

func TestSink_ConcurrentProducers(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.AddListing(listing.Listing{DetailURL: fmt.Sprintf("https://x/%d", i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.AddDetail(listing.Detail{DetailURL: fmt.Sprintf("https://x/%d", i), Description: "d"})
		}(i)
	}
	wg.Wait()

	l, d := s.Len()
	assert.Equal(t, 50, l)
	assert.Equal(t, 50, d)

	s.CloseListings()
	s.CloseDetails()
	joined, err := s.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, joined, 50)
	for _, j := range joined {
		assert.Equal(t, "d", j.Description)
	}
}

// --- Key Tests ---

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x/job/1", "https://x/job/1"},
		{"https://x/job/1/", "https://x/job/1"},
		{"https://x/job/1#apply", "https://x/job/1"},
		{"https://x/", "https://x/"},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
