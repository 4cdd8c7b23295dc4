package server

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// PlayerHandler resolves a scanned song id to its playable audio.
type PlayerHandler struct {
	*routeSet
	s *Server
}

// NewPlayerHandler registers the public player route.
func NewPlayerHandler(s *Server) *PlayerHandler {
	h := &PlayerHandler{routeSet: newRouteSet(), s: s}
	h.handle("GET /api/player/{id}", h.get)
	return h
}

type playerResponse struct {
	Song     *models.Song `json:"song"`
	AudioURL string       `json:"audioURL"`
}

func (h *PlayerHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	song, err := h.s.gw.Songs().Get(r.Context(), id)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	if !song.HasAudio() {
		h.s.writeError(w, r, fmt.Errorf("%w: song %s has no audio", shared.ErrNotFound, id))
		return
	}

	writeJSON(w, http.StatusOK, playerResponse{
		Song:     song,
		AudioURL: h.s.gw.FileURL(models.CollectionSongs, song.ID, song.Audio),
	})
}
