package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jmylchreest/jobsweep/pkg/fetcher"
	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// Field locates one value inside a listing container. When Attribute is
// set the value is read from that attribute, otherwise from the text.
type Field struct {
	Selector  string `mapstructure:"selector" yaml:"selector" json:"selector" validate:"required"`
	Attribute string `mapstructure:"attribute" yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Default   string `mapstructure:"default" yaml:"default,omitempty" json:"default,omitempty"`
}

// Selectors is the field map for listing and detail pages.
type Selectors struct {
	// Result count on the first page ("1 - 20 of 310").
	Count string `mapstructure:"count" yaml:"count" validate:"required"`
	// One element per job card.
	Container string `mapstructure:"container" yaml:"container" validate:"required"`

	Title      Field `mapstructure:"title" yaml:"title"`
	DetailURL  Field `mapstructure:"detail_url" yaml:"detail_url"`
	Company    Field `mapstructure:"company" yaml:"company"`
	Experience Field `mapstructure:"experience" yaml:"experience"`
	Location   Field `mapstructure:"location" yaml:"location"`
	Salary     Field `mapstructure:"salary" yaml:"salary"`

	// Presence marks a walk-in listing.
	WalkInMarker string `mapstructure:"walk_in_marker" yaml:"walk_in_marker" validate:"required"`

	DetailContainer string `mapstructure:"detail_container" yaml:"detail_container" validate:"required"`
	ReadMore        string `mapstructure:"read_more" yaml:"read_more"`
	Expanded        string `mapstructure:"expanded" yaml:"expanded"`
	WalkInTime      string `mapstructure:"walk_in_time" yaml:"walk_in_time"`
	WalkInVenue     string `mapstructure:"walk_in_venue" yaml:"walk_in_venue"`
}

// DefaultSelectors returns the listing site's current class names.
func DefaultSelectors() Selectors {
	return Selectors{
		Count:           "span.styles_count-string__DlPaZ",
		Container:       ".srp-jobtuple-wrapper",
		Title:           Field{Selector: ".title"},
		DetailURL:       Field{Selector: ".title", Attribute: "href"},
		Company:         Field{Selector: ".comp-name"},
		Experience:      Field{Selector: ".exp-wrap .exp"},
		Location:        Field{Selector: ".locWdth"},
		Salary:          Field{Selector: ".sal-wrap .ni-job-tuple-icon span", Attribute: "title", Default: listing.NotDisclosed},
		WalkInMarker:    ".ttc__walk-in",
		DetailContainer: ".styles_job-desc-container__txpYf",
		ReadMore:        ".styles_read-more__MyWkb",
		Expanded:        ".styles_JDC__dang-inner-html__h0K4t",
		WalkInTime:      ".styles_jhc__walkin__57j_D",
		WalkInVenue:     ".styles_jhc__venue__2cqi5",
	}
}

// finder is satisfied by both fetcher.Page and fetcher.Element.
type finder interface {
	FindOne(ctx context.Context, sel string) (fetcher.Element, error)
}

// defaultValue is what a missing field resolves to.
func (f Field) defaultValue() string {
	if f.Default != "" {
		return f.Default
	}
	return listing.NotApplicable
}

// read resolves f inside root. A missing element or empty value yields the
// field default together with fetcher.ErrNotFound; other errors are returned
// as is.
func (f Field) read(ctx context.Context, root finder) (string, error) {
	el, err := root.FindOne(ctx, f.Selector)
	if err != nil {
		return f.defaultValue(), err
	}

	var raw string
	if f.Attribute != "" {
		raw, err = el.Attribute(ctx, f.Attribute)
	} else {
		raw, err = el.Text(ctx)
	}
	if err != nil {
		return f.defaultValue(), err
	}

	v := cleanText(raw)
	if v == "" {
		return f.defaultValue(), fmt.Errorf("%w: empty value for %q", fetcher.ErrNotFound, f.Selector)
	}
	return v, nil
}

// cleanText collapses whitespace and normalizes to NFC.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// cleanBlock normalizes multi-line text: lines are trimmed, runs of blank
// lines collapse to one.
func cleanBlock(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return norm.NFC.String(strings.TrimSpace(strings.Join(out, "\n")))
}

// resolveURL makes href absolute against base. Fragment-only and
// javascript: links are rejected.
func resolveURL(base, href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	linkURL, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !linkURL.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		linkURL = b.ResolveReference(linkURL)
	}
	linkURL.Fragment = ""
	return linkURL.String(), true
}
