// Package cleaner converts a detail page's description HTML into the form
// stored in the dataset.
package cleaner

// Cleaner transforms description HTML.
type Cleaner interface {
	// Clean transforms the input HTML. The output format depends on the
	// implementation (markdown, tidied HTML, ...).
	Clean(html string) (string, error)

	// Name returns the cleaner type for logging.
	Name() string
}
