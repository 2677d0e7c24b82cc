package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/jobsweep/internal/logger"
	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// PageSequence is the ordered list of result pages to visit for one
// partition.
type PageSequence struct {
	Partition listing.Partition `json:"partition" yaml:"partition"`
	// Total is the result count read from the site; 0 when unknown.
	Total     int      `json:"total" yaml:"total"`
	PageCount int      `json:"page_count" yaml:"page_count"`
	URLs      []string `json:"urls" yaml:"urls"`
}

// Planner reads a partition's result count and derives its page sequence.
type Planner struct {
	countSelector string
	pageSize      int
	pageCap       int
	wait          time.Duration
}

// NewPlanner creates a planner from cfg.
func NewPlanner(cfg Config) *Planner {
	return &Planner{
		countSelector: cfg.Selectors.Count,
		pageSize:      cfg.PageSize,
		pageCap:       cfg.PageCap,
		wait:          cfg.CountWait,
	}
}

// Plan opens the partition's count URL and builds its page sequence. Any
// failure short of a fatal one falls back to a single page. Only
// fetcher.ErrFatal is returned as an error.
func (p *Planner) Plan(ctx context.Context, session fetcher.Session, part listing.Partition) (PageSequence, error) {
	total, err := p.readTotal(ctx, session, part)
	if err != nil {
		if errors.Is(err, fetcher.ErrFatal) {
			return PageSequence{Partition: part}, err
		}
		logger.Warn("could not read result count, visiting first page only",
			"partition", part.Key,
			"error", err)
	}

	n := PageCount(total, p.pageSize, p.pageCap)
	seq := PageSequence{
		Partition: part,
		Total:     total,
		PageCount: n,
		URLs:      make([]string, 0, n),
	}
	for i := 1; i <= n; i++ {
		seq.URLs = append(seq.URLs, part.PageURL(i))
	}

	logger.Debug("page plan",
		"partition", part.Key,
		"total", total,
		"pages", n)
	return seq, nil
}

func (p *Planner) readTotal(ctx context.Context, session fetcher.Session, part listing.Partition) (int, error) {
	page, err := session.Open(ctx, part.CountURL())
	if err != nil {
		return 0, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitFor(ctx, p.countSelector, p.wait); err != nil {
		return 0, err
	}
	el, err := page.FindOne(ctx, p.countSelector)
	if err != nil {
		return 0, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return 0, err
	}
	return ParseTotal(text)
}

// ParseTotal reads TOTAL from a count string of the form "N of TOTAL":
// the first token after the last "of", thousands separators removed.
func ParseTotal(text string) (int, error) {
	rest := text
	if i := strings.LastIndex(text, "of"); i >= 0 {
		rest = text[i+len("of"):]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no count in %q", text)
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return 0, fmt.Errorf("unparsable count %q: %w", text, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %q", text)
	}
	return n, nil
}

// PageCount is ceil(total/pageSize) bounded by pageCap, and never below 1:
// the first page is always visited. A pageCap of 0 means no cap.
func PageCount(total, pageSize, pageCap int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	n := (total + pageSize - 1) / pageSize
	if pageCap > 0 && n > pageCap {
		n = pageCap
	}
	if n < 1 {
		n = 1
	}
	return n
}
