package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// Deck is an ordered set of cards. The order of Cards is the display and print order.
//
// Songs is the earlier schema's direct list of song ids, still read for old decks.
// Version changes on every write and is used to reject stale writes. Decks and cards carry the
// backend's system created/updated fields; only songs have their own createdAt/updatedAt.
type Deck struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	Cards       []string  `json:"cards"`
	Songs       []string  `json:"songs,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   Timestamp `json:"created"`
	UpdatedAt   Timestamp `json:"updated"`
}

func (d Deck) RecordID() string { return d.ID }

// IsLegacy reports whether the deck still keeps its order in the earlier songs list.
func (d Deck) IsLegacy() bool {
	return len(d.Cards) == 0 && len(d.Songs) > 0
}

// Details returns the editable fields outside the card order.
func (d Deck) Details() DeckDetails {
	return DeckDetails{Name: d.Name, Description: d.Description, IsActive: d.IsActive}
}

// DeckDetails is everything about a deck except its card order.
type DeckDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// Validate requires a name.
func (d DeckDetails) Validate() error {
	return Deck{Name: d.Name}.Validate()
}

// Validate requires a name.
func (d Deck) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: deck name is required", shared.ErrValidation)
	}
	return nil
}

// IndexOf returns the position of cardID in the deck order or -1.
func (d Deck) IndexOf(cardID string) int {
	return slices.Index(d.Cards, cardID)
}

// CardIDs returns a copy of the card order.
func (d Deck) CardIDs() []string {
	return slices.Clone(d.Cards)
}
