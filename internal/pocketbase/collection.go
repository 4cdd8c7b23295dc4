package pocketbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Collection is the REST CRUD surface of one collection.
type Collection[T models.Model] struct {
	client *Client
	name   string
	search []string
	sort   string
	after  func(*T)
}

type listResponse[T any] struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

func (c *Collection[T]) path(id string) string {
	p := models.RecordsPath(c.name)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// List fetches one page. A free-text filter becomes a "~" (contains) match over the searchable fields.
func (c *Collection[T]) List(ctx context.Context, opts models.ListOptions) (*models.Page[T], error) {
	opts = opts.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("perPage", strconv.Itoa(opts.PerPage))
	if sort := opts.Sort; sort != "" {
		q.Set("sort", sort)
	} else if c.sort != "" {
		q.Set("sort", c.sort)
	}
	if f := buildFilter(c.search, opts.Filter); f != "" {
		q.Set("filter", f)
	}

	var resp listResponse[T]
	if err := c.client.doRequest(ctx, http.MethodGet, c.path("")+"?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	if c.after != nil {
		for i := range resp.Items {
			c.after(&resp.Items[i])
		}
	}
	return &models.Page[T]{
		Page:       resp.Page,
		PerPage:    resp.PerPage,
		TotalItems: resp.TotalItems,
		TotalPages: resp.TotalPages,
		Items:      resp.Items,
	}, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty %s id", shared.ErrNotFound, c.name)
	}
	var rec T
	if err := c.client.doRequest(ctx, http.MethodGet, c.path(id), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	if c.after != nil {
		c.after(&rec)
	}
	return &rec, nil
}

func (c *Collection[T]) Create(ctx context.Context, record *T, files ...models.File) error {
	if err := (*record).Validate(); err != nil {
		return err
	}
	body, err := recordBody(record, files)
	if err != nil {
		return err
	}
	if err := c.client.doRequest(ctx, http.MethodPost, c.path(""), body, files, record); err != nil {
		return fmt.Errorf("create %s: %w", c.name, err)
	}
	if c.after != nil {
		c.after(record)
	}
	return nil
}

func (c *Collection[T]) Update(ctx context.Context, record *T, files ...models.File) error {
	if err := (*record).Validate(); err != nil {
		return err
	}
	id := (*record).RecordID()
	if id == "" {
		return fmt.Errorf("%w: update %s without id", shared.ErrInvalidArgument, c.name)
	}
	body, err := recordBody(record, files)
	if err != nil {
		return err
	}
	if err := c.client.doRequest(ctx, http.MethodPatch, c.path(id), body, files, record); err != nil {
		return fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	if c.after != nil {
		c.after(record)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.client.doRequest(ctx, http.MethodDelete, c.path(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return nil
}

// recordBody encodes a record as a field map without server-managed keys. Fields that receive
// an uploaded file are left to the file part.
func recordBody(record any, files []models.File) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	for _, k := range []string{"id", "createdAt", "updatedAt", "created", "updated", "version"} {
		delete(body, k)
	}
	for _, f := range files {
		delete(body, f.Field)
	}
	return body, nil
}

// buildFilter returns `a ~ "q" || b ~ "q"` with the query quoted for the filter grammar.
func buildFilter(fields []string, q string) string {
	q = strings.TrimSpace(q)
	if q == "" || len(fields) == 0 {
		return ""
	}
	quoted := strconv.Quote(q)
	clauses := make([]string, len(fields))
	for i, f := range fields {
		clauses[i] = f + " ~ " + quoted
	}
	return strings.Join(clauses, " || ")
}
