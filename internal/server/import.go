package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// ImportHandler serves the video info/download proxy and the multipart bulk import.
type ImportHandler struct {
	*routeSet
	s *Server
}

// NewImportHandler registers the import routes. Bulk import requires a session.
func NewImportHandler(s *Server) *ImportHandler {
	h := &ImportHandler{routeSet: newRouteSet(), s: s}
	h.handle("POST "+services.ImportPath, h.info)
	h.handle("GET "+services.ImportPath, h.download)

	bulk := newRouteSet(s.authenticated()...)
	bulk.handle("POST /api/songs/bulk-import", h.bulkImport)
	h.handle("POST /api/songs/bulk-import", bulk.ServeHTTP)
	return h
}

type infoRequest struct {
	URL string `json:"url"`
}

func (h *ImportHandler) info(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.s.writeError(w, r, fmt.Errorf("%w: URL is required", shared.ErrMissingArgument))
		return
	}

	info, err := h.s.engine.FetchInfo(r.Context(), req.URL)
	if err != nil {
		h.s.writeError(w, r, services.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *ImportHandler) download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	url, encodingID := q.Get("url"), q.Get("encodingId")
	if url == "" || encodingID == "" {
		h.s.writeError(w, r, fmt.Errorf("%w: url and encodingId are required", shared.ErrMissingArgument))
		return
	}

	dl, err := h.s.engine.Download(r.Context(), url, encodingID)
	if err != nil {
		h.s.writeError(w, r, services.Classify(err))
		return
	}
	defer dl.Body.Close()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName(dl.Filename)))
	if dl.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.s.logger.Warn("download interrupted", "url", url, "error", err)
	}
}

type bulkPayload struct {
	Requests json.RawMessage `json:"requests"`
}

type bulkRequest struct {
	Method string         `json:"method"`
	URL    string         `json:"url"`
	Body   map[string]any `json:"body"`
}

var (
	errMissingPayload  = errors.New("missing @jsonPayload")
	errInvalidRequests = errors.New("invalid requests array")
)

// bulkImport turns "@jsonPayload" plus one "requests.{i}.audio" part per request into a single
// batch of song creates.
func (h *ImportHandler) bulkImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.s.writeFailure(w, r, http.StatusBadRequest, "Invalid multipart body", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	reqs, closeFiles, err := h.batchRequests(r.MultipartForm)
	defer closeFiles()
	switch {
	case errors.Is(err, errMissingPayload):
		writeJSON(w, http.StatusBadRequest, services.ErrorResponse{Error: "Missing @jsonPayload"})
		return
	case errors.Is(err, errInvalidRequests):
		writeJSON(w, http.StatusBadRequest, services.ErrorResponse{Error: "Invalid requests array"})
		return
	case err != nil:
		h.s.writeFailure(w, r, http.StatusInternalServerError, "Failed to import songs", err)
		return
	}

	results, err := h.s.engine.SubmitBatch(r.Context(), reqs)
	if err != nil {
		h.s.writeFailure(w, r, http.StatusInternalServerError, "Failed to import songs", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ImportHandler) batchRequests(form *multipart.Form) ([]models.BatchRequest, func(), error) {
	var opened []multipart.File
	closeFiles := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	raw := form.Value["@jsonPayload"]
	if len(raw) == 0 || raw[0] == "" {
		return nil, closeFiles, errMissingPayload
	}
	var payload bulkPayload
	if err := json.Unmarshal([]byte(raw[0]), &payload); err != nil {
		return nil, closeFiles, fmt.Errorf("invalid @jsonPayload: %w", err)
	}
	var items []bulkRequest
	if err := json.Unmarshal(payload.Requests, &items); err != nil || len(items) == 0 {
		return nil, closeFiles, errInvalidRequests
	}

	reqs := make([]models.BatchRequest, 0, len(items))
	for i, in := range items {
		headers := form.File[fmt.Sprintf("requests.%d.audio", i)]
		if len(headers) == 0 {
			return nil, closeFiles, fmt.Errorf("missing audio file for request %d", i)
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, closeFiles, fmt.Errorf("failed to open audio for request %d: %w", i, err)
		}
		opened = append(opened, f)

		body := make(map[string]any, len(in.Body))
		for k, v := range in.Body {
			if str, ok := v.(string); ok {
				v = h.s.sanitize(str)
			}
			body[k] = v
		}

		reqs = append(reqs, models.BatchRequest{
			Method: http.MethodPost,
			URL:    models.RecordsPath(models.CollectionSongs),
			Body:   body,
			Files: []models.File{{
				Field:       "audio",
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Reader:      f,
			}},
		})
	}
	return reqs, closeFiles, nil
}

// attachmentName keeps the .mp3 attachment name existing clients expect; Content-Type carries
// the real format.
func attachmentName(stored string) string {
	return strings.TrimSuffix(stored, path.Ext(stored)) + ".mp3"
}
