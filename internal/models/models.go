// package models defines the records and persistence contracts for the card quiz
package models

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// Collection names used by every backend.
const (
	CollectionSongs = "songs"
	CollectionDecks = "decks"
	CollectionCards = "cards"
	CollectionUsers = "users"
)

// DefaultPerPage matches the admin list page size.
const DefaultPerPage = 20

// Model is implemented by every persisted record.
type Model interface {
	RecordID() string // RecordID returns the unique identifier for this record
	Validate() error  // Validate checks required fields before any network or database call
}

// Collection is the typed CRUD contract over one record kind.
//
// Files are attached on Create/Update when the record has a file field (songs carry "audio").
type Collection[T Model] interface {
	List(ctx context.Context, opts ListOptions) (*Page[T], error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, record *T, files ...File) error
	Update(ctx context.Context, record *T, files ...File) error
	Delete(ctx context.Context, id string) error
}

// ListOptions describes one page request. Filter is free text matched against the
// collection's searchable fields.
type ListOptions struct {
	Filter  string
	Sort    string
	Page    int
	PerPage int
}

// Normalize fills in page defaults.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	o.Filter = strings.TrimSpace(o.Filter)
	return o
}

// Offset is the number of records skipped before this page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// Page is one page of list results.
type Page[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

// NewPage computes TotalPages from the total item count.
func NewPage[T any](opts ListOptions, total int, items []T) *Page[T] {
	pages := 0
	if opts.PerPage > 0 {
		pages = (total + opts.PerPage - 1) / opts.PerPage
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Page: opts.Page, PerPage: opts.PerPage, TotalItems: total, TotalPages: pages, Items: items}
}

// File is an upload attached to a record field.
type File struct {
	Field       string
	Name        string
	ContentType string
	Reader      io.Reader
}

const pbLayout = "2006-01-02 15:04:05.000Z"

// Timestamp decodes both the hosted backend's "2006-01-02 15:04:05.000Z" layout and RFC 3339.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a [Timestamp] in UTC.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(pbLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{pbLayout, time.RFC3339Nano, "2006-01-02 15:04:05Z", time.DateTime} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return &time.ParseError{Layout: pbLayout, Value: s}
}
