package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// CardType selects which fields of a [Card] carry its title.
type CardType string

const (
	CardSong    CardType = "song"
	CardOST     CardType = "ost"
	CardOpening CardType = "opening"
	CardAd      CardType = "ad"
)

// CardTypes lists every known type in display order.
var CardTypes = []CardType{CardSong, CardOST, CardOpening, CardAd}

// ParseCardType accepts a type name case-insensitively.
func ParseCardType(s string) (CardType, error) {
	t := CardType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case CardSong, CardOST, CardOpening, CardAd:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, s)
}

func (t CardType) String() string { return string(t) }

// Label is the human readable name of the type.
func (t CardType) Label() string {
	switch t {
	case CardOST:
		return "OST"
	case CardOpening:
		return "Opening"
	case CardAd:
		return "Ad"
	default:
		return "Song"
	}
}

// Card is one playable unit in a deck. Every card references a song, which supplies
// the audio and the QR identity; ost/opening/ad cards override the printed title.
type Card struct {
	ID        string    `json:"id"`
	Type      CardType  `json:"type"`
	Song      string    `json:"song"`
	OST       string    `json:"ost"`
	Opening   string    `json:"opening"`
	Ad        string    `json:"ad"`
	Year      string    `json:"year"`
	CreatedAt Timestamp `json:"created"`
	UpdatedAt Timestamp `json:"updated"`
}

func (c Card) RecordID() string { return c.ID }

// Text returns the type-specific title field.
func (c Card) Text() string {
	switch c.Type {
	case CardOST:
		return c.OST
	case CardOpening:
		return c.Opening
	case CardAd:
		return c.Ad
	}
	return ""
}

// Normalize trims input and clears text fields that don't belong to the card's type.
func (c *Card) Normalize() {
	c.Song = strings.TrimSpace(c.Song)
	c.Year = strings.TrimSpace(c.Year)
	text := strings.TrimSpace(c.Text())
	c.OST, c.Opening, c.Ad = "", "", ""
	switch c.Type {
	case CardOST:
		c.OST = text
	case CardOpening:
		c.Opening = text
	case CardAd:
		c.Ad = text
	}
}

// Validate requires a known type, a song reference, and the type's text for non-song cards.
func (c Card) Validate() error {
	if _, err := ParseCardType(string(c.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Song) == "" {
		return fmt.Errorf("%w: a song must be selected", shared.ErrValidation)
	}
	if c.Type != CardSong && strings.TrimSpace(c.Text()) == "" {
		return fmt.Errorf("%w: %s title is required", shared.ErrValidation, c.Type.Label())
	}
	return nil
}

// CardWithSong is a card resolved for display. Song is nil when it could not be
// resolved; Err records why the card or song lookup failed.
type CardWithSong struct {
	Card Card   `json:"card"`
	Song *Song  `json:"song,omitempty"`
	Err  string `json:"error,omitempty"`
}

// Title is the song title for song cards and the type-specific text otherwise.
func (c CardWithSong) Title() string {
	if c.Card.Type == CardSong || c.Card.Type == "" {
		if c.Song != nil {
			return c.Song.Title
		}
		return ""
	}
	return c.Card.Text()
}

// Artist is the resolved song's artist.
func (c CardWithSong) Artist() string {
	if c.Song == nil {
		return ""
	}
	return c.Song.Artist
}

// DisplayYear prefers the song's year, then the card's own year, then "N/A".
func (c CardWithSong) DisplayYear() string {
	if c.Song != nil && c.Song.Year > 0 {
		return strconv.Itoa(c.Song.Year)
	}
	if c.Card.Year != "" {
		return c.Card.Year
	}
	return "N/A"
}

// SongID is the identity encoded on the card's QR code.
func (c CardWithSong) SongID() string {
	if c.Song != nil {
		return c.Song.ID
	}
	return c.Card.Song
}
