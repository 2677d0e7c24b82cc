package crawler

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// card describes one job card in a fixture result page.
type card struct {
	title   string
	href    string
	company string
	exp     string
	loc     string
	salary  string
	walkIn  bool
}

func countHTML(text string) string {
	return `<html><body><span class="styles_count-string__DlPaZ">` + text + `</span></body></html>`
}

func listHTML(cards ...card) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"list\">")
	for _, c := range cards {
		b.WriteString(`<div class="srp-jobtuple-wrapper">`)
		if c.title != "" || c.href != "" {
			fmt.Fprintf(&b, `<a class="title" href="%s">%s</a>`, c.href, c.title)
		}
		if c.company != "" {
			fmt.Fprintf(&b, `<a class="comp-name">%s</a>`, c.company)
		}
		if c.exp != "" {
			fmt.Fprintf(&b, `<span class="exp-wrap"><span class="exp">%s</span></span>`, c.exp)
		}
		if c.loc != "" {
			fmt.Fprintf(&b, `<span class="locWdth">%s</span>`, c.loc)
		}
		if c.salary != "" {
			fmt.Fprintf(&b, `<span class="sal-wrap"><span class="ni-job-tuple-icon"><span title="%s">%s</span></span></span>`, c.salary, c.salary)
		}
		if c.walkIn {
			b.WriteString(`<span class="ttc__walk-in">Walk-in</span>`)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func detailHTML(desc, expanded, when, venue string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if when != "" {
		fmt.Fprintf(&b, `<div class="styles_jhc__walkin__57j_D">%s</div>`, when)
	}
	if venue != "" {
		fmt.Fprintf(&b, `<div class="styles_jhc__venue__2cqi5">%s</div>`, venue)
	}
	fmt.Fprintf(&b, `<section class="styles_job-desc-container__txpYf">%s`, desc)
	if expanded != "" {
		fmt.Fprintf(&b, `<span class="styles_read-more__MyWkb">read more</span><div class="styles_JDC__dang-inner-html__h0K4t">%s</div>`, expanded)
	}
	b.WriteString("</section></body></html>")
	return b.String()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryPolicy{Attempts: 3, Backoff: time.Millisecond}
	cfg.CountWait = 10 * time.Millisecond
	cfg.ContainerWait = 10 * time.Millisecond
	cfg.DetailWait = 10 * time.Millisecond
	cfg.ExpandWait = 10 * time.Millisecond
	cfg.WalkInWait = 10 * time.Millisecond
	return cfg
}

func testPartition(key string) listing.Partition {
	return listing.Partition{
		Key:         key,
		DisplayName: strings.ToUpper(key),
		BaseURL:     "https://jobs.example.com/walkin-jobs-in-" + key,
		QueryParams: "?jobAge=1",
	}
}
