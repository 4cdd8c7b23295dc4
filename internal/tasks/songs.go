package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// SongPatch names the song fields to change; nil fields keep their value.
type SongPatch struct {
	Title  *string `json:"title,omitempty"`
	Artist *string `json:"artist,omitempty"`
	Album  *string `json:"album,omitempty"`
	Year   *int    `json:"year,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SongPatch) Empty() bool {
	return p.Title == nil && p.Artist == nil && p.Album == nil && p.Year == nil
}

func (p SongPatch) apply(s *models.Song) {
	if p.Title != nil {
		s.Title = strings.TrimSpace(*p.Title)
	}
	if p.Artist != nil {
		s.Artist = strings.TrimSpace(*p.Artist)
	}
	if p.Album != nil {
		s.Album = strings.TrimSpace(*p.Album)
	}
	if p.Year != nil {
		s.Year = *p.Year
	}
}

// CreateSong stores a new song, with its audio file when audio is not nil.
func (e *Engine) CreateSong(ctx context.Context, song *models.Song, audio *models.File) error {
	if e.gw == nil {
		return fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}
	song.Title = strings.TrimSpace(song.Title)
	song.Artist = strings.TrimSpace(song.Artist)
	song.Album = strings.TrimSpace(song.Album)
	if err := song.Validate(); err != nil {
		return err
	}

	if err := e.gw.Songs().Create(ctx, song, audioFiles(audio)...); err != nil {
		return fmt.Errorf("failed to create song: %w", err)
	}
	e.logger.Info("created song", "id", song.ID, "title", song.Title, "audio", song.Audio)
	return nil
}

// UpdateSong applies patch to the stored song and replaces its audio when audio is not nil.
func (e *Engine) UpdateSong(ctx context.Context, id string, patch SongPatch, audio *models.File) (*models.Song, error) {
	if e.gw == nil {
		return nil, fmt.Errorf("%w: gateway not initialized", shared.ErrServiceUnavailable)
	}
	if patch.Empty() && audio == nil {
		return nil, fmt.Errorf("%w: nothing to change", shared.ErrMissingArgument)
	}

	song, err := e.gw.Songs().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(song)
	if err := song.Validate(); err != nil {
		return nil, err
	}

	if err := e.gw.Songs().Update(ctx, song, audioFiles(audio)...); err != nil {
		return nil, fmt.Errorf("failed to update song %s: %w", id, err)
	}
	e.logger.Info("updated song", "id", song.ID, "title", song.Title, "audio", song.Audio)
	return song, nil
}

func audioFiles(audio *models.File) []models.File {
	if audio == nil {
		return nil
	}
	f := *audio
	f.Field = "audio"
	return []models.File{f}
}
