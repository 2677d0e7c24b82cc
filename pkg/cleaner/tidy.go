package cleaner

import "strings"

// TidyCleaner trims trailing whitespace from every line and collapses runs
// of blank lines into one.
type TidyCleaner struct{}

// NewTidy creates a new whitespace cleaner.
func NewTidy() *TidyCleaner {
	return &TidyCleaner{}
}

// Clean normalizes whitespace.
func (c *TidyCleaner) Clean(s string) (string, error) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

// Name returns the cleaner type.
func (c *TidyCleaner) Name() string {
	return "tidy"
}
