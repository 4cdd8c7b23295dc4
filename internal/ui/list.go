package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/cardquiz/internal/models"
)

var _ list.Item = cardItem{}

// cardItem wraps [models.CardWithSong] to implement [list.Item].
type cardItem struct {
	pos  int
	card models.CardWithSong
}

func (i cardItem) FilterValue() string { return i.card.Title() + " " + i.card.Artist() }
func (i cardItem) Title() string {
	title := i.card.Title()
	if title == "" {
		title = "(unresolved " + i.card.Card.Type.Label() + " card)"
	}
	return fmt.Sprintf("%2d. %s", i.pos, title)
}

func (i cardItem) Description() string {
	if i.card.Err != "" {
		return styles.err.Render(i.card.Err)
	}
	parts := []string{styles.badge(i.card.Card.Type)}
	if artist := i.card.Artist(); artist != "" {
		parts = append(parts, artist)
	}
	if year := i.card.DisplayYear(); year != "" {
		parts = append(parts, year)
	}
	if !i.playable() {
		parts = append(parts, "no audio")
	}
	return strings.Join(parts, " • ")
}

func (i cardItem) playable() bool {
	return i.card.Song != nil && i.card.Song.HasAudio()
}
