package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BatchRequest is one create/update inside a batched gateway call.
// URL is the collection records path, e.g. "/api/collections/songs/records".
type BatchRequest struct {
	Method string         `json:"method"`
	URL    string         `json:"url"`
	Body   map[string]any `json:"body,omitempty"`
	Files  []File         `json:"-"`
}

// BatchResult is the outcome of one [BatchRequest], in request order.
type BatchResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// RecordsPath is the records endpoint of a collection.
func RecordsPath(collection string) string {
	return "/api/collections/" + collection + "/records"
}

// ParseRecordsPath extracts the collection from a records path and an optional record id.
func ParseRecordsPath(p string) (collection, id string, err error) {
	p, _, _ = strings.Cut(p, "?")
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "collections" || parts[3] != "records" || len(parts) > 5 {
		return "", "", fmt.Errorf("unsupported batch url %q", p)
	}
	if len(parts) == 5 {
		id = parts[4]
	}
	return parts[2], id, nil
}
