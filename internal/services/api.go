// HTTP [VideoService] client for a running cardquiz server's import endpoint
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const ImportPath = "/api/songs/import"

// ImportClient calls the import endpoint of a cardquiz server.
type ImportClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewImportClient creates a client for the server at baseURL.
func NewImportClient(baseURL string, client *http.Client) *ImportClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &ImportClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// ErrorResponse is the body of a failed import request.
type ErrorResponse struct {
	Error   string    `json:"error"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Details string    `json:"details,omitempty"`
}

func (c *ImportClient) Name() string {
	return "cardquiz server at " + c.baseURL
}

// Info posts the URL and returns the video metadata.
func (c *ImportClient) Info(ctx context.Context, rawURL string) (*VideoInfo, error) {
	data, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ImportPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeImportError(resp)
	}

	var info VideoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	SortEncodings(info.Encodings)
	return &info, nil
}

// Download streams the chosen encoding. The caller closes the body.
func (c *ImportClient) Download(ctx context.Context, rawURL, encodingID string) (*Download, error) {
	q := url.Values{"url": {rawURL}}
	if encodingID != "" {
		q.Set("encodingId", encodingID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ImportPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeImportError(resp)
	}

	filename := "audio.mp3"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	contentType := resp.Header.Get("Content-Type")
	// The attachment name always ends in .mp3; the content type tells the real container.
	if f, ok := FormatForMediaType(contentType); ok {
		filename = strings.TrimSuffix(filename, path.Ext(filename)) + f.Ext
	}
	return &Download{
		Filename:    filename,
		ContentType: contentType,
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func decodeImportError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return &ImportError{Kind: KindGeneric, Err: fmt.Errorf("import endpoint returned status %d", resp.StatusCode)}
	}
	kind := e.Kind
	if kind == "" {
		kind = KindGeneric
	}
	return &ImportError{Kind: kind, Err: errors.New(e.Error)}
}
