package jobsweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/fetcher/fetchertest"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

var testPart = listing.Partition{
	Key:         "blr",
	DisplayName: "Bangalore",
	BaseURL:     "https://jobs.example.com/walkin-jobs-in-blr",
	QueryParams: "?jobAge=1",
}

const (
	countPage = `<html><body><span class="styles_count-string__DlPaZ">1 - 20 of 2</span></body></html>`
	listPage  = `<html><body>
<div class="srp-jobtuple-wrapper"><a class="title" href="https://jobs.example.com/job-1">Go Developer</a>
  <a class="comp-name">Acme</a><span class="ttc__walk-in">Walk-in</span></div>
<div class="srp-jobtuple-wrapper"><a class="title" href="https://jobs.example.com/job-2">QA Engineer</a></div>
</body></html>`
	detailPage = `<html><body><section class="styles_job-desc-container__txpYf">Build services.</section></body></html>`
)

func testFetcher() *fetchertest.Fetcher {
	return fetchertest.New().
		SetPage(testPart.CountURL(), countPage).
		SetPage(testPart.PageURL(1), listPage).
		SetPage("https://jobs.example.com/job-1", detailPage)
}

func fastOptions(f fetcher.Fetcher) []Option {
	return []Option{
		WithFetcher(f),
		WithRetry(2, time.Millisecond),
		func(c *Config) {
			c.Crawl.CountWait = 10 * time.Millisecond
			c.Crawl.ContainerWait = 10 * time.Millisecond
			c.Crawl.DetailWait = 10 * time.Millisecond
			c.Crawl.ExpandWait = 10 * time.Millisecond
			c.Crawl.WalkInWait = 10 * time.Millisecond
		},
	}
}

// --- New Tests ---

func TestNew_Defaults(t *testing.T) {
	js, err := New(WithFetchMode(fetcher.ModeStatic))
	require.NoError(t, err)
	defer js.Close()

	cfg := js.Config()
	assert.Equal(t, fetcher.ModeStatic, cfg.FetchMode)
	assert.Equal(t, 5, cfg.Crawl.Partitions)
	assert.Equal(t, 10, cfg.Crawl.Details)
	assert.Equal(t, 3, cfg.Crawl.Retry.Attempts)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"unknown mode", WithFetchMode("lynx"), "FetchMode"},
		{"zero partitions", WithConcurrency(0, 1), "Crawl.Partitions"},
		{"zero details", WithConcurrency(1, 0), "Crawl.Details"},
		{"zero attempts", WithRetry(0, time.Second), "Crawl.Retry.Attempts"},
		{"bad format", WithDescriptionFormat("pdf"), "Crawl.DescriptionFormat"},
		{"zero timeout", WithTimeout(0), "Timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithFetcher(fetchertest.New()), tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_AcceptsEveryDescriptionFormat(t *testing.T) {
	for _, format := range []string{"text", "markdown", "html", "raw"} {
		t.Run(format, func(t *testing.T) {
			_, err := New(WithFetcher(fetchertest.New()), WithDescriptionFormat(format))
			assert.NoError(t, err)
		})
	}
}

func TestClose_LeavesInjectedFetcherOpen(t *testing.T) {
	f := fetchertest.New()
	js, err := New(WithFetcher(f))
	require.NoError(t, err)
	assert.NoError(t, js.Close())
	assert.Equal(t, 0, f.Sessions())
}

// --- Run Tests ---

func TestRun_LeftJoinsDetails(t *testing.T) {
	f := testFetcher()
	js, err := New(fastOptions(f)...)
	require.NoError(t, err)

	res, err := js.Run(context.Background(), []listing.Partition{testPart})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	byURL := make(map[string]listing.Joined)
	for _, r := range res.Records {
		byURL[r.DetailURL] = r
	}

	ok := byURL["https://jobs.example.com/job-1"]
	assert.Equal(t, "Go Developer", ok.Title)
	assert.Equal(t, "Bangalore", ok.DisplayName)
	assert.Equal(t, "Build services.", ok.Description)
	assert.True(t, ok.IsWalkIn)

	failed := byURL["https://jobs.example.com/job-2"]
	assert.Equal(t, listing.DescriptionFailed, failed.Description)

	assert.Equal(t, 2, res.Report.TotalListings)
	assert.Equal(t, 1, res.Report.TotalDetailsFetched)
	assert.Equal(t, 1, res.Report.TotalDetailFailures)

	assert.Len(t, res.Listings, 2, "raw listing stream")
	assert.Len(t, res.Details, 2, "raw detail stream")
}

func TestRun_RejectsInvalidPartitions(t *testing.T) {
	js, err := New(fastOptions(testFetcher())...)
	require.NoError(t, err)

	_, err = js.Run(context.Background(), []listing.Partition{testPart, testPart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid partitions")
}

func TestRun_CancelledContext(t *testing.T) {
	js, err := New(fastOptions(testFetcher())...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := js.Run(ctx, []listing.Partition{testPart})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	require.Len(t, res.Report.PartitionsFailed, 1)
	assert.Equal(t, "blr", res.Report.PartitionsFailed[0].Key)
}

// --- Describe Tests ---

func TestDescribe(t *testing.T) {
	js, err := New(fastOptions(testFetcher())...)
	require.NoError(t, err)

	res, err := js.Describe(context.Background(), []string{
		"https://jobs.example.com/job-1",
		"https://jobs.example.com/job-2",
	}, false)
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	require.Len(t, res.Details, 2)
	byURL := make(map[string]listing.Detail)
	for _, d := range res.Details {
		byURL[d.DetailURL] = d
	}
	assert.Equal(t, "Build services.", byURL["https://jobs.example.com/job-1"].Description)
	assert.Equal(t, listing.DescriptionFailed, byURL["https://jobs.example.com/job-2"].Description)
	assert.Equal(t, 1, res.Report.TotalDetailsFetched)
	assert.Equal(t, 1, res.Report.TotalDetailFailures)
}

func TestDescribe_NoURLs(t *testing.T) {
	js, err := New(fastOptions(testFetcher())...)
	require.NoError(t, err)

	_, err = js.Describe(context.Background(), nil, false)
	assert.Error(t, err)
}

// --- Plan Tests ---

func TestPlan(t *testing.T) {
	f := fetchertest.New().SetPage(testPart.CountURL(),
		`<html><body><span class="styles_count-string__DlPaZ">1 - 20 of 45</span></body></html>`)
	js, err := New(fastOptions(f)...)
	require.NoError(t, err)

	seqs, err := js.Plan(context.Background(), []listing.Partition{testPart})
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, 45, seqs[0].Total)
	assert.Equal(t, 3, seqs[0].PageCount)
	assert.Equal(t, testPart.PageURL(3), seqs[0].URLs[2])
	assert.Equal(t, 0, f.Opens(testPart.PageURL(1)), "planning does not open result pages")
}
