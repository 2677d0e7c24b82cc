// Package listing defines the records that flow through a jobsweep run:
// query partitions in, listing and detail records through the pipeline,
// joined records out.
package listing

import (
	"strconv"
	"time"
)

// Sentinel values substituted for data that could not be read.
const (
	// NotApplicable marks an optional field whose element was absent.
	NotApplicable = "N/A"

	// NotDisclosed is the default for a listing without a salary element.
	NotDisclosed = "Not disclosed"

	// NotAvailable fills detail fields when no detail record arrived for a listing.
	NotAvailable = "not available"

	// DescriptionFailed is the description of a detail fetch that exhausted its retries.
	DescriptionFailed = "Failed to fetch description"
)

// Partition is one independent scrape unit (a city/industry query).
type Partition struct {
	Key         string `json:"key" yaml:"key" validate:"required"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	BaseURL     string `json:"base_url" yaml:"base_url" validate:"required,url"`
	QueryParams string `json:"query" yaml:"query"`
}

// CountURL is the partition's base query, used to read the result count.
func (p Partition) CountURL() string {
	return p.BaseURL + p.QueryParams
}

// PageURL returns the URL of the n-th result page (1-based).
func (p Partition) PageURL(n int) string {
	return p.BaseURL + "-" + strconv.Itoa(n) + p.QueryParams
}

// Name returns the display name, falling back to the key.
func (p Partition) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Key
}

// Listing is a single job card read from a result page.
// DetailURL is the join key.
type Listing struct {
	PartitionKey string `json:"partition_key" yaml:"partition_key"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	Title        string `json:"title" yaml:"title"`
	Company      string `json:"company" yaml:"company"`
	Experience   string `json:"experience" yaml:"experience"`
	Location     string `json:"location" yaml:"location"`
	Salary       string `json:"salary" yaml:"salary"`
	DetailURL    string `json:"detail_url" yaml:"detail_url"`
	IsWalkIn     bool   `json:"is_walk_in" yaml:"is_walk_in"`
}

// Detail holds the enrichment fields read from a listing's detail page.
type Detail struct {
	DetailURL   string    `json:"detail_url" yaml:"detail_url"`
	Description string    `json:"description" yaml:"description"`
	WalkInTime  string    `json:"walk_in_time" yaml:"walk_in_time"`
	WalkInVenue string    `json:"walk_in_venue" yaml:"walk_in_venue"`
	Attempts    int       `json:"attempts" yaml:"attempts"`
	Failed      bool      `json:"failed" yaml:"failed"`
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// Joined is a listing merged with its detail record. Field order matches
// the output dataset column order.
type Joined struct {
	PartitionKey string `json:"partition_key" yaml:"partition_key"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	Title        string `json:"title" yaml:"title"`
	Company      string `json:"company" yaml:"company"`
	Experience   string `json:"experience" yaml:"experience"`
	Location     string `json:"location" yaml:"location"`
	Salary       string `json:"salary" yaml:"salary"`
	DetailURL    string `json:"detail_url" yaml:"detail_url"`
	IsWalkIn     bool   `json:"is_walk_in" yaml:"is_walk_in"`
	WalkInTime   string `json:"walk_in_time" yaml:"walk_in_time"`
	WalkInVenue  string `json:"walk_in_venue" yaml:"walk_in_venue"`
	Description  string `json:"description" yaml:"description"`
}

// Join merges a listing with its detail. A nil detail yields NotAvailable
// for every detail field.
func Join(l Listing, d *Detail) Joined {
	j := Joined{
		PartitionKey: l.PartitionKey,
		DisplayName:  l.DisplayName,
		Title:        l.Title,
		Company:      l.Company,
		Experience:   l.Experience,
		Location:     l.Location,
		Salary:       l.Salary,
		DetailURL:    l.DetailURL,
		IsWalkIn:     l.IsWalkIn,
		WalkInTime:   NotAvailable,
		WalkInVenue:  NotAvailable,
		Description:  NotAvailable,
	}
	if d != nil {
		j.WalkInTime = d.WalkInTime
		j.WalkInVenue = d.WalkInVenue
		j.Description = d.Description
	}
	return j
}

// Header is the output column order.
var Header = []string{
	"partition_key",
	"display_name",
	"title",
	"company",
	"experience",
	"location",
	"salary",
	"detail_url",
	"is_walk_in",
	"walk_in_time",
	"walk_in_venue",
	"description",
}

// Row returns the record's values in Header order. The walk-in flag is
// rendered as "Yes"/"No".
func (j Joined) Row() []string {
	walkIn := "No"
	if j.IsWalkIn {
		walkIn = "Yes"
	}
	return []string{
		j.PartitionKey,
		j.DisplayName,
		j.Title,
		j.Company,
		j.Experience,
		j.Location,
		j.Salary,
		j.DetailURL,
		walkIn,
		j.WalkInTime,
		j.WalkInVenue,
		j.Description,
	}
}

// ListingHeader is the column order of the raw listing stream.
var ListingHeader = Header[:9:9]

// Row returns the listing's values in ListingHeader order.
func (l Listing) Row() []string {
	return Join(l, nil).Row()[:len(ListingHeader)]
}

// DetailHeader is the column order of the raw detail stream.
var DetailHeader = []string{
	"detail_url",
	"description",
	"walk_in_time",
	"walk_in_venue",
	"attempts",
	"failed",
	"completed_at",
}

// Row returns the detail's values in DetailHeader order.
func (d Detail) Row() []string {
	completed := ""
	if !d.CompletedAt.IsZero() {
		completed = d.CompletedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		d.DetailURL,
		d.Description,
		d.WalkInTime,
		d.WalkInVenue,
		strconv.Itoa(d.Attempts),
		strconv.FormatBool(d.Failed),
		completed,
	}
}
