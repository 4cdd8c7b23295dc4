package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/cardquiz/internal/models"
)

var styles = NewPalette(Colors{
	Accent:  "#7D56F4",
	Playing: "#04B575",
	Paused:  "#FFA500",
	Failed:  "#FF0000",
	Muted:   "#626262",
	Types: map[models.CardType]string{
		models.CardSong:    "#7D56F4",
		models.CardOST:     "#00A3E0",
		models.CardOpening: "#E0457B",
		models.CardAd:      "#C9A227",
	},
})

// Colors are the hex foregrounds a [Palette] is built from.
type Colors struct {
	Accent, Playing, Paused, Failed, Muted string
	Types                                  map[models.CardType]string
}

// Palette holds the named styles of the player and deck browser. Player states and card types
// each get their own colour.
type Palette struct {
	title lipgloss.Style
	year  lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	help  lipgloss.Style
	types map[models.CardType]lipgloss.Style
}

func NewPalette(c Colors) *Palette {
	p := &Palette{
		title: NewBold(c.Accent).MarginBottom(1),
		year:  NewBold(c.Accent).Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(c.Accent)),
		ok:    NewBold(c.Playing),
		warn:  NewStyle(c.Paused),
		err:   NewBold(c.Failed),
		help:  NewEm(c.Muted),
		types: make(map[models.CardType]lipgloss.Style, len(c.Types)),
	}
	for t, fg := range c.Types {
		p.types[t] = NewBold(fg)
	}
	return p
}

// badge renders a card type label in the type's colour.
func (p *Palette) badge(t models.CardType) string {
	style, ok := p.types[t]
	if !ok {
		style = p.help
	}
	return style.Render(t.Label())
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
