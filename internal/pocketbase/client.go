// Package pocketbase implements the record gateway against a hosted PocketBase REST API.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

const defaultTimeout = 30 * time.Second

// Client talks to one PocketBase instance. Requests are authorized with the session found in
// the request context, falling back to the client's [session.Store].
type Client struct {
	baseURL        string
	httpClient     *http.Client
	store          *session.Store
	logger         *log.Logger
	authCollection string

	songs *Collection[models.Song]
	decks *DeckCollection
	cards *Collection[models.Card]
	auth  *Auth
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for baseURL. A nil store gets a fresh empty one.
func NewClient(baseURL string, store *session.Store, opts ...Option) *Client {
	if store == nil {
		store = session.NewStore()
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: defaultTimeout},
		store:          store,
		logger:         shared.NewLogger(io.Discard),
		authCollection: models.CollectionUsers,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.songs = &Collection[models.Song]{client: c, name: models.CollectionSongs, search: []string{"title", "artist", "album"}, sort: "-createdAt"}
	c.decks = &DeckCollection{Collection: Collection[models.Deck]{client: c, name: models.CollectionDecks, search: []string{"name", "description"}, sort: "-created", after: stampDeckVersion}}
	c.cards = &Collection[models.Card]{client: c, name: models.CollectionCards, search: []string{"ost", "opening", "ad"}, sort: "-created"}
	c.auth = &Auth{client: c}
	return c
}

func (c *Client) Songs() models.Collection[models.Song] { return c.songs }
func (c *Client) Decks() *DeckCollection { return c.decks }
func (c *Client) Cards() models.Collection[models.Card] { return c.cards }
func (c *Client) Auth() *Auth { return c.auth }
func (c *Client) Close() error { return nil }

// FileURL maps a record's stored filename to a fetchable URL.
func (c *Client) FileURL(collection, id, filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/files/%s/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id), url.PathEscape(filename))
}

// Batch runs record writes as one transactional /api/batch call.
func (c *Client) Batch(ctx context.Context, reqs []models.BatchRequest) ([]models.BatchResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	payload := map[string]any{"requests": reqs}
	var files []models.File
	for i, r := range reqs {
		for _, f := range r.Files {
			f.Field = fmt.Sprintf("requests.%d.%s", i, f.Field)
			files = append(files, f)
		}
	}

	var results []models.BatchResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/batch", payload, files, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrBatchFailed, err)
	}
	return results, nil
}

// apiError is PocketBase's error envelope.
type apiError struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (c *Client) token(ctx context.Context) string {
	if sess, ok := session.FromContext(ctx); ok {
		return sess.Token
	}
	return c.store.Token()
}

// doRequest sends body as JSON, or as multipart with an @jsonPayload part when files are attached,
// and decodes a JSON response into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, files []models.File, result any) error {
	var (
		reader      io.Reader
		contentType string
	)

	switch {
	case len(files) > 0:
		buf, ct, err := encodeMultipart(body, files)
		if err != nil {
			return err
		}
		reader, contentType = buf, ct
	case body != nil:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.token(ctx); tok != "" {
		req.Header.Set("Authorization", tok)
	}

	c.logger.Debug("gateway request", "method", method, "endpoint", endpoint, "files", len(files))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var apiErr apiError
	msg := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
		if details := fieldErrors(apiErr.Data); details != "" {
			msg += " (" + details + ")"
		}
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = shared.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = shared.ErrUnauthorized
	case http.StatusNotFound:
		kind = shared.ErrNotFound
	default:
		kind = shared.ErrGateway
	}
	return fmt.Errorf("%w: %s (status %d)", kind, msg, resp.StatusCode)
}

// fieldErrors flattens {"title": {"code": "...", "message": "..."}} into "title: message".
func fieldErrors(data map[string]any) string {
	var parts []string
	for field, v := range data {
		if m, ok := v.(map[string]any); ok {
			if text, ok := m["message"].(string); ok {
				parts = append(parts, field+": "+text)
			}
		}
	}
	return strings.Join(parts, ", ")
}

func encodeMultipart(body any, files []models.File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		if err := w.WriteField("@jsonPayload", string(data)); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
