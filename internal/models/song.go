package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// Song is a playable track. Audio is the stored filename of its audio file, empty when none was uploaded.
type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Year      int       `json:"year"`
	Audio     string    `json:"audio,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

func (s Song) RecordID() string { return s.ID }

// Validate requires a title and a plausible year.
func (s Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: song title is required", shared.ErrValidation)
	}
	if s.Year < 0 || s.Year > 9999 {
		return fmt.Errorf("%w: song year %d out of range", shared.ErrValidation, s.Year)
	}
	return nil
}

// HasAudio reports whether an audio file is attached.
func (s Song) HasAudio() bool {
	return s.Audio != ""
}

// Label is "Artist - Title", or just the title when the artist is unknown.
func (s Song) Label() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}
