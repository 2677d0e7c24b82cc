package crawler

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// Report summarizes a run.
type Report struct {
	RunID               string             `json:"run_id" yaml:"run_id"`
	StartedAt           time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt          time.Time          `json:"finished_at" yaml:"finished_at"`
	PartitionsAttempted int                `json:"partitions_attempted" yaml:"partitions_attempted"`
	PartitionsFailed    []PartitionFailure `json:"partitions_failed" yaml:"partitions_failed"`
	TotalListings       int                `json:"total_listings" yaml:"total_listings"`
	// TotalDetailsFetched counts successful detail fetches only.
	TotalDetailsFetched int               `json:"total_details_fetched" yaml:"total_details_fetched"`
	TotalDetailFailures int               `json:"total_detail_failures" yaml:"total_detail_failures"`
	Partitions          []PartitionResult `json:"partitions" yaml:"partitions"`
}

// PartitionFailure names a partition aborted by a fatal error.
type PartitionFailure struct {
	Key    string `json:"key" yaml:"key"`
	Reason string `json:"reason" yaml:"reason"`
}

// PartitionResult is the per-partition tally.
type PartitionResult struct {
	Key      string `json:"key" yaml:"key"`
	Total    int    `json:"total" yaml:"total"`
	Pages    int    `json:"pages" yaml:"pages"`
	Listings int    `json:"listings" yaml:"listings"`
	Dropped  int    `json:"dropped" yaml:"dropped"`
	Err      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the partition was aborted.
func (r PartitionResult) Failed() bool { return r.Err != "" }

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is a one-line human readable digest.
func (r Report) Summary() string {
	return fmt.Sprintf("%s listings from %d/%d partitions, %s details fetched, %s failed, in %s",
		humanize.Comma(int64(r.TotalListings)),
		r.PartitionsAttempted-len(r.PartitionsFailed),
		r.PartitionsAttempted,
		humanize.Comma(int64(r.TotalDetailsFetched)),
		humanize.Comma(int64(r.TotalDetailFailures)),
		r.Duration().Round(time.Millisecond))
}

// tally aggregates results from concurrent workers.
type tally struct {
	mu sync.Mutex
	r  Report
}

func newTally(now time.Time) *tally {
	return &tally{r: Report{
		RunID:            uuid.NewString(),
		StartedAt:        now,
		PartitionsFailed: []PartitionFailure{},
		Partitions:       []PartitionResult{},
	}}
}

func (t *tally) partition(res PartitionResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.r.PartitionsAttempted++
	t.r.TotalListings += res.Listings
	t.r.Partitions = append(t.r.Partitions, res)
	if res.Failed() {
		t.r.PartitionsFailed = append(t.r.PartitionsFailed, PartitionFailure{Key: res.Key, Reason: res.Err})
	}
}

func (t *tally) detail(d listing.Detail) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d.Failed {
		t.r.TotalDetailFailures++
	} else {
		t.r.TotalDetailsFetched++
	}
}

func (t *tally) finish(now time.Time) Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.r.FinishedAt = now
	return t.r
}
