// Package manifest loads the list of partitions a run scrapes.
//
// A manifest is YAML, JSON or CSV. YAML and JSON accept either a bare list
// of partitions or an object with a default base_url:
//
//	base_url: https://www.naukri.com/walkin-jobs
//	partitions:
//	  - key: BLR
//	    display_name: Bangalore
//	    query: "?cityTypeGid=97&jobAge=1"
//
// CSV files use the header "City Key,City,URL,query"; an optional
// "INDUSTRY ID" column is folded into the key.
package manifest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// DefaultBaseURL is used for partitions that do not name their own.
const DefaultBaseURL = "https://www.naukri.com/walkin-jobs"

// Manifest is the document form of a partition list.
type Manifest struct {
	BaseURL    string              `json:"base_url" yaml:"base_url"`
	Partitions []listing.Partition `json:"partitions" yaml:"partitions"`
}

// Option configures loading.
type Option func(*options)

type options struct {
	baseURL string
}

// WithDefaultBaseURL sets the base URL for partitions without one. It
// overrides DefaultBaseURL but not a base_url set in the manifest itself.
func WithDefaultBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// FieldError describes one invalid partition field.
type FieldError struct {
	Index   int
	Key     string
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("partition %d (%s): %s %s", e.Index, e.Key, e.Field, e.Message)
	}
	return fmt.Sprintf("partition %d: %s %s", e.Index, e.Field, e.Message)
}

// FromFile loads and validates a manifest, picking the format from the
// file extension.
func FromFile(path string, opts ...Option) ([]listing.Partition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FromJSON(data, opts...)
	case ".yaml", ".yml":
		return FromYAML(data, opts...)
	case ".csv":
		return FromCSV(bytes.NewReader(data), opts...)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", ext)
	}
}

// FromYAML parses a YAML manifest.
func FromYAML(data []byte, opts ...Option) ([]listing.Partition, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		var list []listing.Partition
		if lerr := yaml.Unmarshal(data, &list); lerr != nil {
			return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
		}
		m = Manifest{Partitions: list}
	}
	return finish(m, opts)
}

// FromJSON parses a JSON manifest.
func FromJSON(data []byte, opts ...Option) ([]listing.Partition, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		var list []listing.Partition
		if lerr := json.Unmarshal(data, &list); lerr != nil {
			return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
		}
		m = Manifest{Partitions: list}
	}
	return finish(m, opts)
}

// FromCSV parses a CSV manifest with a header row.
func FromCSV(r io.Reader, opts ...Option) ([]listing.Partition, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV manifest: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV manifest is empty")
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := col["city key"]; !ok {
		return nil, errors.New(`CSV manifest needs a "City Key" column`)
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var m Manifest
	for _, row := range rows[1:] {
		key := get(row, "city key")
		if industry := get(row, "industry id"); industry != "" {
			key += "/" + industry
		}
		m.Partitions = append(m.Partitions, listing.Partition{
			Key:         key,
			DisplayName: get(row, "city"),
			BaseURL:     get(row, "url"),
			QueryParams: get(row, "query"),
		})
	}
	return finish(m, opts)
}

// finish applies the default base URL and validates the result.
func finish(m Manifest, opts []Option) ([]listing.Partition, error) {
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}
	base := m.BaseURL
	if base == "" {
		base = o.baseURL
	}

	parts := make([]listing.Partition, len(m.Partitions))
	for i, p := range m.Partitions {
		if p.BaseURL == "" {
			p.BaseURL = base
		}
		p.BaseURL = strings.TrimRight(p.BaseURL, "/")
		parts[i] = p
	}
	if err := Validate(parts); err != nil {
		return nil, err
	}
	return parts, nil
}

var validate = validator.New()

// Validate checks every partition's fields and that keys are unique.
func Validate(parts []listing.Partition) error {
	if len(parts) == 0 {
		return errors.New("manifest has no partitions")
	}

	var errs []error
	seen := make(map[string]int)
	for i, p := range parts {
		if err := validate.Struct(p); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, e := range verrs {
					errs = append(errs, FieldError{Index: i, Key: p.Key, Field: e.Field(), Message: formatValidationError(e)})
				}
			} else {
				errs = append(errs, err)
			}
		}
		if p.Key == "" {
			continue
		}
		if prev, ok := seen[p.Key]; ok {
			errs = append(errs, FieldError{Index: i, Key: p.Key, Field: "Key", Message: fmt.Sprintf("duplicates partition %d", prev)})
			continue
		}
		seen[p.Key] = i
	}
	return errors.Join(errs...)
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
