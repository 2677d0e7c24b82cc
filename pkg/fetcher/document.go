package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DocumentPage is a Page over an already-loaded HTML document. The static
// fetcher returns one per response; tests build them directly.
type DocumentPage struct {
	url string
	doc *goquery.Document
}

// NewDocumentPage parses html as the page at url.
func NewDocumentPage(url, html string) (*DocumentPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &DocumentPage{url: url, doc: doc}, nil
}

func (p *DocumentPage) URL() string { return p.url }

// WaitFor checks sel once. A document never changes after load, so a
// missing element is reported as ErrTimeout without sleeping.
func (p *DocumentPage) WaitFor(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return Wrap(ErrTimeout, p.url, err)
	}
	if p.doc.Find(sel).Length() == 0 {
		return Wrap(ErrTimeout, p.url, fmt.Errorf("waiting for %q", sel))
	}
	return nil
}

func (p *DocumentPage) FindOne(_ context.Context, sel string) (Element, error) {
	return findOne(p.url, p.doc.Selection, sel)
}

func (p *DocumentPage) FindAll(_ context.Context, sel string) ([]Element, error) {
	return findAll(p.url, p.doc.Selection, sel), nil
}

func (p *DocumentPage) Close() error { return nil }

// documentElement wraps a single-node goquery selection.
type documentElement struct {
	url string
	sel *goquery.Selection
}

func findOne(url string, root *goquery.Selection, sel string) (Element, error) {
	s := root.Find(sel).First()
	if s.Length() == 0 {
		return nil, Wrap(ErrNotFound, url, fmt.Errorf("no element matches %q", sel))
	}
	return &documentElement{url: url, sel: s}, nil
}

func findAll(url string, root *goquery.Selection, sel string) []Element {
	var out []Element
	root.Find(sel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &documentElement{url: url, sel: s})
	})
	return out
}

func (e *documentElement) Text(context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *documentElement) HTML(context.Context) (string, error) {
	return e.sel.Html()
}

func (e *documentElement) Attribute(_ context.Context, name string) (string, error) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", Wrap(ErrNotFound, e.url, fmt.Errorf("attribute %q", name))
	}
	return v, nil
}

// Click is a no-op: a parsed document has no scripts to run. Content
// hidden behind an expander is already present in the markup.
func (e *documentElement) Click(context.Context) error { return nil }

func (e *documentElement) FindOne(_ context.Context, sel string) (Element, error) {
	return findOne(e.url, e.sel, sel)
}

func (e *documentElement) FindAll(_ context.Context, sel string) ([]Element, error) {
	return findAll(e.url, e.sel, sel), nil
}
