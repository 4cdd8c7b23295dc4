package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/formatter"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
	"github.com/desertthunder/cardquiz/internal/tasks"
)

// AdminHandler serves deck composition, stats and exports. Every route requires a session.
type AdminHandler struct {
	*routeSet
	s *Server
}

// NewAdminHandler registers the admin routes behind [Server.authenticated].
func NewAdminHandler(s *Server) *AdminHandler {
	h := &AdminHandler{routeSet: newRouteSet(s.authenticated()...), s: s}
	h.handle("GET /api/admin/stats", h.stats)
	h.handle("GET /api/admin/songs", h.songs)
	h.handle("POST /api/admin/songs", h.createSong)
	h.handle("PATCH /api/admin/songs/{id}", h.updateSong)
	h.handle("GET /api/admin/songs/{id}/qr.png", h.songQR)
	h.handle("POST /api/admin/decks", h.createDeck)
	h.handle("PATCH /api/admin/decks/{id}", h.updateDeck)
	h.handle("DELETE /api/admin/decks/{id}", h.deleteDeck)
	h.handle("GET /api/admin/decks/{id}/cards", h.cards)
	h.handle("POST /api/admin/decks/{id}/cards", h.addCard)
	h.handle("PATCH /api/admin/decks/{id}/cards/{cardID}", h.editCard)
	h.handle("DELETE /api/admin/decks/{id}/cards/{cardID}", h.removeCard)
	h.handle("POST /api/admin/decks/{id}/cards/{cardID}/move", h.moveCard)
	h.handle("GET /api/admin/decks/{id}/pdf", h.deckPDF)
	return h
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.s.engine.Stats(r.Context(), nil)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) songs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := models.ListOptions{Filter: h.s.sanitize(q.Get("q")), Sort: "-createdAt"}
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			h.s.writeError(w, r, fmt.Errorf("%w: page must be a positive integer", shared.ErrInvalidArgument))
			return
		}
		opts.Page = page
	}

	page, err := h.s.gw.Songs().List(r.Context(), opts.Normalize())
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// songBody reads a JSON song body, or a multipart form carrying it in "@jsonPayload" next to an
// optional "audio" file.
func (h *AdminHandler) songBody(w http.ResponseWriter, r *http.Request, dst any) (*models.File, func(), error) {
	done := func() {}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, done, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err)
		}
		return nil, done, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, done, fmt.Errorf("%w: invalid multipart body: %v", shared.ErrInvalidArgument, err)
	}
	form := r.MultipartForm
	done = func() { form.RemoveAll() }

	if raw := form.Value["@jsonPayload"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), dst); err != nil {
			return nil, done, fmt.Errorf("%w: invalid @jsonPayload: %v", shared.ErrInvalidArgument, err)
		}
	}
	headers := form.File["audio"]
	if len(headers) == 0 {
		return nil, done, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, done, fmt.Errorf("failed to open audio: %w", err)
	}
	done = func() {
		f.Close()
		form.RemoveAll()
	}
	return &models.File{Field: "audio", Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Reader: f}, done, nil
}

type songRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   int    `json:"year"`
}

func (h *AdminHandler) createSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	audio, done, err := h.songBody(w, r, &req)
	defer done()
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	song := &models.Song{
		Title:  h.s.sanitize(req.Title),
		Artist: h.s.sanitize(req.Artist),
		Album:  h.s.sanitize(req.Album),
		Year:   req.Year,
	}
	if err := h.s.engine.CreateSong(r.Context(), song, audio); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, song)
}

func (h *AdminHandler) updateSong(w http.ResponseWriter, r *http.Request) {
	var patch tasks.SongPatch
	audio, done, err := h.songBody(w, r, &patch)
	defer done()
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	for _, f := range []*string{patch.Title, patch.Artist, patch.Album} {
		if f != nil {
			*f = h.s.sanitize(*f)
		}
	}

	song, err := h.s.engine.UpdateSong(r.Context(), r.PathValue("id"), patch, audio)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (h *AdminHandler) songQR(w http.ResponseWriter, r *http.Request) {
	song, err := h.s.gw.Songs().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	png, err := formatter.SongQR(song.ID, formatter.QRSize)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// createDeck makes an empty deck; isActive defaults to true.
func (h *AdminHandler) createDeck(w http.ResponseWriter, r *http.Request) {
	var req decks.DeckPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}

	deck := &models.Deck{IsActive: true, Cards: []string{}}
	if req.Name != nil {
		deck.Name = h.s.sanitize(*req.Name)
	}
	if req.Description != nil {
		deck.Description = h.s.sanitize(*req.Description)
	}
	if req.IsActive != nil {
		deck.IsActive = *req.IsActive
	}
	if err := deck.Validate(); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	if err := h.s.gw.Decks().Create(r.Context(), deck); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

func (h *AdminHandler) updateDeck(w http.ResponseWriter, r *http.Request) {
	var patch decks.DeckPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}
	for _, f := range []*string{patch.Name, patch.Description} {
		if f != nil {
			*f = h.s.sanitize(*f)
		}
	}

	deck, err := h.s.composer.UpdateDeck(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (h *AdminHandler) deleteDeck(w http.ResponseWriter, r *http.Request) {
	opts := decks.RemoveOptions{DeleteRecord: r.URL.Query().Get("cards") == "true"}
	if err := h.s.composer.DeleteDeck(r.Context(), r.PathValue("id"), opts); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cardsResponse struct {
	Deck  *models.Deck          `json:"deck"`
	Cards []models.CardWithSong `json:"cards"`
}

func (h *AdminHandler) cards(w http.ResponseWriter, r *http.Request) {
	deck, cards, err := h.s.composer.Cards(r.Context(), r.PathValue("id"))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsResponse{Deck: deck, Cards: cards})
}

type cardRequest struct {
	Type string `json:"type"`
	Song string `json:"song"`
	Text string `json:"text"`
	Year string `json:"year"`
}

func (h *AdminHandler) addCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}
	typ, err := models.ParseCardType(req.Type)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	card, err := h.s.composer.AppendCard(r.Context(), r.PathValue("id"), decks.CardInput{
		Type: typ,
		Song: req.Song,
		Text: h.s.sanitize(req.Text),
		Year: h.s.sanitize(req.Year),
	})
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *AdminHandler) editCard(w http.ResponseWriter, r *http.Request) {
	var patch decks.CardPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}
	if patch.Type != nil {
		typ, err := models.ParseCardType(strings.TrimSpace(string(*patch.Type)))
		if err != nil {
			h.s.writeError(w, r, err)
			return
		}
		patch.Type = &typ
	}
	for _, f := range []*string{patch.Text, patch.Year} {
		if f != nil {
			*f = h.s.sanitize(*f)
		}
	}

	card, err := h.s.composer.EditCard(r.Context(), r.PathValue("id"), r.PathValue("cardID"), patch)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *AdminHandler) removeCard(w http.ResponseWriter, r *http.Request) {
	opts := decks.RemoveOptions{DeleteRecord: r.URL.Query().Get("delete") == "true"}
	deck, err := h.s.composer.RemoveCard(r.Context(), r.PathValue("id"), r.PathValue("cardID"), opts)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

type moveResponse struct {
	Cards []string `json:"cards"`
}

func (h *AdminHandler) moveCard(w http.ResponseWriter, r *http.Request) {
	dir, err := decks.ParseDirection(r.URL.Query().Get("dir"))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	cards, err := h.s.composer.Move(r.Context(), r.PathValue("id"), r.PathValue("cardID"), dir)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Cards: cards})
}

// deckPDF renders into memory first so a failed render still gets a JSON error.
func (h *AdminHandler) deckPDF(w http.ResponseWriter, r *http.Request) {
	deck, cards, err := h.s.composer.Cards(r.Context(), r.PathValue("id"))
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := formatter.WriteDeckPDF(&buf, deck.Name, cards); err != nil {
		h.s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.PDFFilename(deck.Name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
