package cleaner

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// MarkdownCleaner converts HTML to Markdown, keeping headings, lists and
// emphasis from the posting.
type MarkdownCleaner struct {
	conv *md.Converter
}

// MarkdownOption configures the markdown cleaner.
type MarkdownOption func(*markdownConfig)

type markdownConfig struct {
	// StripLinks keeps link text and drops the URL.
	StripLinks bool
	// StripImages removes images entirely.
	StripImages bool
}

// WithStripLinks configures the cleaner to remove link URLs.
func WithStripLinks(strip bool) MarkdownOption {
	return func(c *markdownConfig) {
		c.StripLinks = strip
	}
}

// WithStripImages configures the cleaner to remove images.
func WithStripImages(strip bool) MarkdownOption {
	return func(c *markdownConfig) {
		c.StripImages = strip
	}
}

// NewMarkdown creates a new Markdown cleaner.
func NewMarkdown(opts ...MarkdownOption) *MarkdownCleaner {
	var cfg markdownConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	conv := md.NewConverter("", true, nil)
	if cfg.StripLinks {
		conv.AddRules(md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(content)
			},
		})
	}
	if cfg.StripImages {
		conv.AddRules(md.Rule{
			Filter: []string{"img"},
			Replacement: func(string, *goquery.Selection, *md.Options) *string {
				return md.String("")
			},
		})
	}
	return &MarkdownCleaner{conv: conv}
}

// Clean converts HTML to Markdown.
func (c *MarkdownCleaner) Clean(html string) (string, error) {
	markdown, err := c.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// Name returns the cleaner type.
func (c *MarkdownCleaner) Name() string {
	return "markdown"
}
