package manifest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// urlColumns are the CSV headers URLsFromCSV accepts, in preference order.
// "apply url" is the column of earlier listing exports.
var urlColumns = []string{"detail_url", "apply url", "url"}

// URLsFromFile reads a list of detail URLs. CSV files (such as a previous
// run's dataset) take the first of the detail_url, Apply URL or url columns;
// any other file holds one URL per line with blank lines and # comments
// skipped.
func URLsFromFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return URLsFromCSV(bytes.NewReader(data))
	}
	return URLsFromLines(bytes.NewReader(data))
}

// URLsFromCSV reads the URL column of a CSV file with a header row.
func URLsFromCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV URL list: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV URL list is empty")
	}

	col := -1
	header := make(map[string]int)
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range urlColumns {
		if i, ok := header[name]; ok {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("CSV URL list needs one of the columns %q", urlColumns)
	}

	var urls []string
	for _, row := range rows[1:] {
		if col < len(row) {
			urls = append(urls, strings.TrimSpace(row[col]))
		}
	}
	return checkURLs(urls)
}

// URLsFromLines reads one URL per line.
func URLsFromLines(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return checkURLs(urls)
}

// checkURLs drops empty entries and rejects values that are not URLs.
func checkURLs(in []string) ([]string, error) {
	out := in[:0]
	var errs []error
	for i, u := range in {
		if u == "" {
			continue
		}
		if err := validate.Var(u, "url"); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %q must be a valid URL", i+1, u))
			continue
		}
		out = append(out, u)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("URL list has no URLs")
	}
	return out, nil
}
